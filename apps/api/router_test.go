package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/auth/devtoken"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	"github.com/Ixotic27/certifyhub/platform/go/tenant"
	tenantmiddleware "github.com/Ixotic27/certifyhub/platform/go/tenant/middleware"
)

type stubRoutes struct{}

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func (stubRoutes) PublicRoutes(r chi.Router) {
	r.Get("/clubs", ok)
	r.Post("/certificates/verify", ok)
}

func (stubRoutes) AdminRoutes(r chi.Router) {
	r.Get("/club", func(w http.ResponseWriter, r *http.Request) {
		space, found := tenant.FromContext(r.Context())
		if !found {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(space.Slug))
	})
}

func (stubRoutes) PlatformRoutes(r chi.Router) {
	r.Get("/clubs", ok)
}

type resolverFunc func(ctx context.Context, clubID uuid.UUID) (tenant.Space, error)

func (f resolverFunc) ResolveClubSpace(ctx context.Context, clubID uuid.UUID) (tenant.Space, error) {
	return f(ctx, clubID)
}

func newTestRouter(t *testing.T, activeClub uuid.UUID, ready error) http.Handler {
	t.Helper()
	resolver := resolverFunc(func(_ context.Context, id uuid.UUID) (tenant.Space, error) {
		if id != activeClub {
			return tenant.Space{}, tenantmiddleware.ErrClubInactive
		}
		return tenant.Space{ClubID: id, Slug: "robotics"}, nil
	})
	h, err := newRouter(routerDeps{
		Logger:    zaptest.NewLogger(t),
		Metrics:   metrics.New("test"),
		Auth:      platformauth.JWT(platformauth.UnsignedTokenVerifier(), nil),
		ClubSpace: tenantmiddleware.WithClubSpace(resolver, tenantmiddleware.Config{}),
		Ready:     func(context.Context) error { return ready },
		Public:    []publicRoutes{stubRoutes{}},
		Admin:     []adminRoutes{stubRoutes{}},
		Platform:  []platformRoutes{stubRoutes{}},
	})
	require.NoError(t, err)
	return h
}

func token(t *testing.T, clubID string, platform bool) string {
	t.Helper()
	tok, err := devtoken.BuildUnsignedFirebaseToken(devtoken.Params{
		ProjectID:     "local-certifyhub",
		ClubID:        clubID,
		PlatformAdmin: platform,
		UserID:        "admin-1",
		Email:         "admin@example.com",
	}, time.Now())
	require.NoError(t, err)
	return tok
}

func do(h http.Handler, method, target, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpsEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, uuid.New(), nil)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "", "").Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/readyz", "", "").Code)

	rec := do(h, http.MethodGet, "/docs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/openapi/certificates.json")

	rec = do(h, http.MethodGet, "/openapi/certificates.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/api/v1/public/certificates/verify")
	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/openapi/users.json", "", "").Code)

	do(h, http.MethodGet, "/api/v1/public/clubs", "", "")
	rec = do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestReadyzReportsFailure(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, uuid.New(), errors.New("db down"))
	require.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/readyz", "", "").Code)
}

func TestPublicRequestsAreValidated(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, uuid.New(), nil)

	rec := do(h, http.MethodPost, "/api/v1/public/certificates/verify", `{"name":"Jane Doe","studentId":"S1","clubSlug":"robotics"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/public/certificates/verify", `{"name":"Jane Doe"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = do(h, http.MethodGet, "/api/v1/public/clubs?pageSize=0", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminBoundary(t *testing.T) {
	t.Parallel()

	clubID := uuid.New()
	h := newTestRouter(t, clubID, nil)

	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/admin/club", "", "").Code)

	rec := do(h, http.MethodGet, "/api/v1/admin/club", "", token(t, clubID.String(), false))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "robotics", rec.Body.String())

	rec = do(h, http.MethodGet, "/api/v1/admin/club", "", token(t, uuid.NewString(), false))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/admin/club", "", token(t, "", true))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlatformBoundary(t *testing.T) {
	t.Parallel()

	clubID := uuid.New()
	h := newTestRouter(t, clubID, nil)

	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/platform/clubs", "", "").Code)
	require.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/platform/clubs", "", token(t, clubID.String(), false)).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/platform/clubs", "", token(t, "", true)).Code)
}
