package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple servers never collide
// on the global default registerer. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry        *prometheus.Registry
	httpReqCnt      *prometheus.CounterVec
	httpDur         *prometheus.HistogramVec
	certsGenerated  *prometheus.CounterVec
	composeDur      prometheus.Histogram
	rosterRows      *prometheus.CounterVec
	activityFailCnt prometheus.Counter
}

// New builds the collectors under the given namespace.
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	certsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "certificates_generated_total"}, []string{"club"})
	composeDur := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "composition_duration_seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 10)})
	rosterRows := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "roster_rows_total"}, []string{"outcome"})
	activityFailCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "activity_log_failures_total"})
	r.MustRegister(certsGenerated, composeDur, rosterRows, activityFailCnt)

	return &Metrics{
		registry:        r,
		httpReqCnt:      httpReqCnt,
		httpDur:         httpDur,
		certsGenerated:  certsGenerated,
		composeDur:      composeDur,
		rosterRows:      rosterRows,
		activityFailCnt: activityFailCnt,
	}
}

// CertificateGenerated counts one ledger entry for the club.
func (m *Metrics) CertificateGenerated(clubSlug string) {
	if m == nil {
		return
	}
	m.certsGenerated.WithLabelValues(clubSlug).Inc()
}

// CompositionDone observes how long a render took.
func (m *Metrics) CompositionDone(since time.Time) {
	if m == nil {
		return
	}
	m.composeDur.Observe(time.Since(since).Seconds())
}

// RosterRows counts import rows by outcome (new, duplicate, invalid).
func (m *Metrics) RosterRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rosterRows.WithLabelValues(outcome).Add(float64(n))
}

// ActivityLogFailed counts a swallowed activity log write.
func (m *Metrics) ActivityLogFailed() {
	if m == nil {
		return
	}
	m.activityFailCnt.Inc()
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		m.httpReqCnt.WithLabelValues(r.Method, route, status).Inc()
		m.httpDur.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
