/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. metrics:    Request duration histogram per route

ROUTE GROUPS:
  /api/obligations/*   Obligation lifecycle and queries
  /api/installments/*  Installment accumulator payments
  /api/loans/*         Schedule generation
  /api/health          Liveness probe
  /metrics             Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))
	r.Use(recordDuration)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Obligation routes
		r.Route("/obligations", func(r chi.Router) {
			r.Post("/charges", h.CreateCharge)
			r.Get("/open", h.ListOpenObligations)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/payments", h.CreatePayment)
				r.Post("/interest", h.CreateInterest)
				r.Post("/penalties", h.CreatePenalty)
				r.Post("/discounts", h.CreateDiscount)
				r.Post("/legacy-adjustments", h.CreateLegacyAdjustment)
				r.Post("/cancellations", h.CreateCancellation)
				r.Get("/balance", h.GetBalance)
				r.Get("/events", h.GetEvents)
			})
		})

		// Installment routes
		r.Route("/installments", func(r chi.Router) {
			r.Post("/{chargeEventId}/payments", h.CreateInstallmentPayment)
		})

		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Post("/schedules", h.CreateLoanSchedule)
		})

		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// recordDuration observes handler latency per matched route pattern.
func recordDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
