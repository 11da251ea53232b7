// Package api provides the REST API router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	// Timeout bounds each request. Zero means 60s.
	Timeout time.Duration
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new API router.
func NewRouter(handler *Handler, logger zerolog.Logger) *chi.Mux {
	return NewRouterWithConfig(handler, logger, RouterConfig{})
}

func NewRouterWithConfig(handler *Handler, logger zerolog.Logger, config RouterConfig) *chi.Mux {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var metricsHandler http.Handler = promhttp.Handler()
	if config.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", handler.CreateSchedule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetSchedule)
				r.Patch("/", handler.UpdateSchedule)
				r.Post("/archive", handler.ArchiveSchedule)
				r.Get("/deadlines", handler.ListScheduleDeadlines)
			})
		})

		r.Route("/deadlines", func(r chi.Router) {
			r.Get("/", handler.ListDeadlines)
			r.Post("/{id}/complete", handler.CompleteDeadline)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", handler.ListEvents)
			r.Post("/", handler.CreateEvent)
			r.Get("/{id}", handler.GetEvent)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", handler.ListRules)
			r.Post("/", handler.CreateRule)
			r.Post("/validate", handler.ValidateRule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetRule)
				r.Get("/executions", handler.ListExecutions)
				r.Post("/evaluate", handler.EvaluateRule)
			})
		})

		r.Post("/evaluations", handler.EvaluateDue)

		r.Route("/subjects/{id}", func(r chi.Router) {
			r.Get("/totals", handler.SubjectTotals)
			r.Post("/increments", handler.RecordIncrement)
		})
	})

	return r
}
