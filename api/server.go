/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

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
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/students/{studentID}/courses/{courseID}", func(r chi.Router) {
			r.Get("/summary", h.GetSummary)
			r.Get("/plans", h.ListPlans)
			r.Get("/payments", h.ListPayments)
			r.Post("/payments", h.RecordPayment)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/reverse", h.ReversePayment)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/generate", h.GeneratePlans)
		})

		r.Get("/policy", h.GetPolicy)
		r.Put("/policy", h.UpdatePolicy)

		r.Post("/import", h.Import)
	})

	return r
}
