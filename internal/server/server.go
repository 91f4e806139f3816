// Package server implements the front HTTP surface of the frontpage server.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/frontpage/internal/offline"
	"github.com/eugener/frontpage/internal/offline/notify"
	"github.com/eugener/frontpage/internal/ratelimit"
	"github.com/eugener/frontpage/internal/telemetry"
)

// Authenticator validates the caller of a control mutation.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) error
}

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Offline        *offline.Manager
	Auth           Authenticator       // nil = control mutations always answer 401
	Feed           *notify.Feed        // nil = notification routes answer 404
	Limiter        *ratelimit.Registry // nil = control routes are not rate limited
	ReadyCheck     ReadyChecker        // nil = always ready (for tests)
	Metrics        *telemetry.Metrics  // nil = no request metrics
	MetricsHandler http.Handler        // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics, deps.Offline.Classify))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Offline cache control
	r.Route("/_sw", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/notifications", s.handleNotifications)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Use(s.authenticate)
			r.Post("/install", s.handleInstall)
			r.Post("/activate", s.handleActivate)
			r.Post("/sync", s.handleSync)
			r.Post("/push", s.handlePush)
		})
		r.Get("/notifications/{tag}/click", s.handleNotificationClick)
	})

	// Everything else is the dashboard, through the offline cache.
	r.NotFound(deps.Offline.ServeHTTP)
	r.MethodNotAllowed(deps.Offline.ServeHTTP)

	return r
}

type server struct {
	deps Deps
}
