package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/contracts"
	platformauth "github.com/Ixotic27/certifyhub/platform/go/auth"
	"github.com/Ixotic27/certifyhub/platform/go/httpapi"
	platformlogging "github.com/Ixotic27/certifyhub/platform/go/logging"
	"github.com/Ixotic27/certifyhub/platform/go/metrics"
	platformmiddleware "github.com/Ixotic27/certifyhub/platform/go/middleware"
)

type publicRoutes interface {
	PublicRoutes(r chi.Router)
}

type adminRoutes interface {
	AdminRoutes(r chi.Router)
}

type platformRoutes interface {
	PlatformRoutes(r chi.Router)
}

// routerDeps is everything the HTTP surface is assembled from.
type routerDeps struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	Auth           func(http.Handler) http.Handler
	ClubSpace      func(http.Handler) http.Handler
	Ready          func(ctx context.Context) error

	Public   []publicRoutes
	Admin    []adminRoutes
	Platform []platformRoutes

	FilesPath string
	Files     http.Handler
}

func newRouter(deps routerDeps) (http.Handler, error) {
	publicValidator, err := newContractValidator("certificates")
	if err != nil {
		return nil, err
	}

	root := chi.NewRouter()
	root.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		platformmiddleware.DefaultCORS(),
		deps.Metrics.Middleware,
		platformlogging.RequestLogger(deps.Logger),
	)

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				platformlogging.FromRequest(r, deps.Logger).Warn("readiness check failed", zap.Error(err))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	root.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	registerDocsRoutes(root, deps.Logger)

	if deps.Files != nil && deps.FilesPath != "" {
		root.Handle(deps.FilesPath+"/*", deps.Files)
	}

	api := chi.NewRouter()
	if deps.RequestTimeout > 0 {
		api.Use(chimw.Timeout(deps.RequestTimeout))
	}
	api.Use(deps.Auth)
	api.Use(platformmiddleware.RequestTrace)

	api.Route("/public", func(r chi.Router) {
		r.Use(publicValidator)
		for _, h := range deps.Public {
			h.PublicRoutes(r)
		}
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(platformauth.RequireAuthenticated)
		r.Use(deps.ClubSpace)
		for _, h := range deps.Admin {
			h.AdminRoutes(r)
		}
	})

	api.Route("/platform", func(r chi.Router) {
		r.Use(platformauth.RequireAuthenticated)
		r.Use(platformauth.RequirePlatformAdmin)
		for _, h := range deps.Platform {
			h.PlatformRoutes(r)
		}
	})

	root.Mount("/api/v1", api)
	return root, nil
}

// newContractValidator rejects requests that do not match the named contract
// before they reach a handler.
func newContractValidator(name string) (func(http.Handler) http.Handler, error) {
	doc, err := contracts.Load(name)
	if err != nil {
		return nil, err
	}
	return oapimiddleware.OapiRequestValidatorWithOptions(doc, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: platformmiddleware.ValidateAuthenticationViaSwagger,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			problemType := httpapi.ProblemTypeValidation
			title := "Validation failed"
			if statusCode == http.StatusNotFound {
				problemType, title = httpapi.ProblemTypeNotFound, "Resource not found"
			}
			httpapi.WriteProblem(w, httpapi.Problem(title, message, problemType, statusCode, nil))
		},
	}), nil
}
