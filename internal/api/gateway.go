package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brouie/team-microservices-factory/config"
	"github.com/brouie/team-microservices-factory/gateway"
	"github.com/brouie/team-microservices-factory/registry"
)

// GatewayHandler serves the token-gated reverse proxy
type GatewayHandler struct {
	forwarder *gateway.Forwarder
}

// NewGatewayHandler creates a new GatewayHandler
func NewGatewayHandler(forwarder *gateway.Forwarder) *GatewayHandler {
	return &GatewayHandler{forwarder: forwarder}
}

// HandleHealth reports gateway liveness
func (g *GatewayHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// HandleProxy forwards the request to the service's deployed endpoint
func (g *GatewayHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceID")
	subPath := chi.URLParam(r, "*")

	err := g.forwarder.Forward(w, r, serviceID, subPath)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, gateway.ErrAccessDenied):
		gatewayError(w, "Token access required", http.StatusForbidden)
	case errors.Is(err, registry.ErrNotFound):
		gatewayError(w, "Service not found", http.StatusNotFound)
	case errors.Is(err, gateway.ErrNotDeployed):
		gatewayError(w, "Service not deployed", http.StatusBadRequest)
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		gatewayError(w, "Upstream unavailable", http.StatusBadGateway)
	default:
		gatewayError(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewGatewayRouter creates and configures the gateway router
func NewGatewayRouter(g *GatewayHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	// Upstream calls carry their own timeout; leave an extra margin for
	// request parsing and response streaming
	r.Use(middleware.Timeout(time.Duration(cfg.Gateway.UpstreamTimeoutSeconds+5) * time.Second))
	r.Use(MetricsMiddleware)

	r.Get("/health", g.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// All methods proxy through
	r.HandleFunc("/proxy/{serviceID}/*", g.HandleProxy)

	return r
}

func gatewayError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
