// Package api provides the HTTP API for AirSentry.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/api/handler"
	"github.com/airsentry/airsentry/internal/api/middleware"
	"github.com/airsentry/airsentry/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Ops    *handler.OpsHandler
	AQI    *handler.AQIHandler
	Alerts *handler.AlertsHandler
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airsentry-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no such endpoint")
	})

	alertRateLimit := middleware.RateLimitByIP(middleware.AlertRateLimit)         // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", cfg.Ops.HealthCheck)
			r.Get("/ready", cfg.Ops.ReadinessCheck)
			r.Get("/status", cfg.Ops.SystemStatus)
		})

		// Station listing - standard rate limiting
		r.With(standardRateLimit).Get("/stations", cfg.AQI.ListStations)

		r.Route("/aqi", func(r chi.Router) {
			r.With(standardRateLimit).Get("/aggregate", cfg.AQI.Aggregate)
			// Kriging is CPU-bound, so its budget is strict.
			r.With(expensiveRateLimit).Post("/interpolate", cfg.AQI.Interpolate)
		})

		r.Route("/alerts", func(r chi.Router) {
			// Checks can trigger outbound sends.
			r.With(alertRateLimit).Post("/check", cfg.Alerts.Check)
			r.With(standardRateLimit).Get("/recent", cfg.Alerts.Recent)
		})
	})

	return r
}
