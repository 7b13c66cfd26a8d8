// Package api is the HTTP surface over the auth engine: the /api/auth
// routes, the request gate on the bearer-only routes, and the health and
// metrics endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mlenahan/homebase/auth"
	"github.com/mlenahan/homebase/auth/middleware"
)

// Config tunes the router-level per-IP throttle.
type Config struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Handler carries the engine into the route handlers.
type Handler struct {
	engine *auth.Engine
	log    zerolog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(engine *auth.Engine, log zerolog.Logger, cfg Config) http.Handler {
	h := &Handler{engine: engine, log: log}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/2fa/enroll", h.enroll)
		r.Post("/2fa/confirm", h.confirm)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)

		// Bearer-gated routes: replacing a working authenticator and the
		// secrets backup.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Post("/2fa/reenroll", h.reenroll)
			r.Post("/2fa/reenroll/confirm", h.reenrollConfirm)
			r.Get("/backup", h.backup)
		})
	})

	return r
}
