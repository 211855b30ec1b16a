package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"playergate/internal/handlers"
	"playergate/internal/metrics"
	"playergate/internal/middleware"
	"playergate/internal/ratelimit"
)

// Options configures the /api/v1 guards.
type Options struct {
	APIKey       string
	RateLimitRPM int64
	Limiter      *ratelimit.Registry
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, api *handlers.APIHandler, opts Options) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())               // panic recovery
	r.Use(middleware.SecurityHeaders())         // hardening headers
	r.Use(middleware.Timeout(15 * time.Second)) // request timeout
	r.Use(middleware.MaxBodySize(64 * 1024))    // 64 KB max body

	// routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(opts.APIKey))
		r.Use(middleware.RateLimit(opts.Limiter, opts.RateLimitRPM))
		api.Routes(r)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
