/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. Logger:     request logging
  3. Recoverer:  panic recovery (500 instead of crash)
  4. CORS:       cross-origin requests for the browser client

ROUTE GROUPS:
  /api/accounts/*   account lifecycle, ledger, schedules, payments
  /api/receipts/*   receipt view of payment entries
  /healthz          liveness
  /metrics          Prometheus

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Post("/{id}/activate", h.ActivateAccount)
			r.Post("/{id}/deactivate", h.DeactivateAccount)
			r.Put("/{id}/limit", h.SetCreditLimit)
			r.Get("/{id}/ledger", h.ListLedger)
			r.Get("/{id}/schedules", h.ListSchedules)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/charges", h.RecordCharge)
			r.Post("/{id}/adjustments", h.RecordAdjustment)
			r.Post("/{id}/refunds", h.RecordRefund)
		})

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/{entryID}", h.GetReceipt)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
