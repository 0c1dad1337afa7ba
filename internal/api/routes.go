package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brouie/team-microservices-factory/config"
)

// NewRouter creates and configures the factory API router
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second))
	r.Use(CORSMiddleware(cfg.Server.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	r.Get("/", h.HandleIndex)
	r.Get("/health", h.HandleHealth)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/ideas", h.HandleSubmitIdea)

	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.HandleListServices)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetService)
			r.Get("/events", h.HandleListEvents)
			r.Get("/events/summary", h.HandleEventSummary)
			r.Get("/status", h.HandleServiceStatus)
			r.Post("/deploy", h.HandleDeployService)
			r.Post("/token", h.HandleCreateToken)
			r.Post("/access", h.HandleCreateAccess)
		})
	})

	r.Get("/stats", h.HandleStats)

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
