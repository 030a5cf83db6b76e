package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

// NewRouter builds the public API. s may be nil when no decision log is
// configured.
func NewRouter(b *broker.Broker, s store.Store, adminToken string, perMinute int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(perMinute))

	routes := NewRouteHandler(b)
	decisions := NewDecisionsHandler(s)
	admin := NewAdminHandler(s, b)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/route", routes.Route)
		r.Post("/route/batch", routes.Batch)
		r.Post("/estimate", routes.Estimate)
		r.Get("/routers", routes.Routers)

		r.Get("/decisions", decisions.List)
		r.Get("/decisions/{id}", decisions.Get)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
