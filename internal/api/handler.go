package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brouie/team-microservices-factory/config"
	"github.com/brouie/team-microservices-factory/internal/app"
	"github.com/brouie/team-microservices-factory/models"
	"github.com/brouie/team-microservices-factory/registry"
)

// HealthChecker reports the health of a backing store
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler handles factory API requests
type Handler struct {
	app    *app.App
	cfg    *config.Config
	health HealthChecker // optional
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithHealthChecker adds a store health probe to /api/health
func WithHealthChecker(hc HealthChecker) HandlerOption {
	return func(h *Handler) { h.health = hc }
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config, opts ...HandlerOption) *Handler {
	h := &Handler{app: application, cfg: cfg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleIndex identifies the API
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{
		"name":   "Microservices Factory API",
		"status": "ok",
	})
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"services": map[string]string{
			"store": "not_configured",
		},
	}

	if h.health != nil {
		stores := status["services"].(map[string]string)
		if err := h.health.Health(r.Context()); err == nil {
			stores["store"] = "connected"
		} else {
			stores["store"] = "disconnected"
			status["status"] = "degraded"
		}
	}

	h.jsonResponse(w, status)
}

// HandleSubmitIdea creates a new queued service from an idea
func (h *Handler) HandleSubmitIdea(w http.ResponseWriter, r *http.Request) {
	var sub models.IdeaSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.app.SubmitIdea(r.Context(), sub)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, record)
}

// HandleListServices returns all services in insertion order
func (h *Handler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.ListServices(r.Context()))
}

// HandleGetService returns one service by id
func (h *Handler) HandleGetService(w http.ResponseWriter, r *http.Request) {
	record, err := h.app.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, record)
}

// HandleListEvents returns the service's event log in append order
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.app.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, events)
}

// HandleEventSummary returns aggregate counts and the last event
func (h *Handler) HandleEventSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.EventSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, summary)
}

// HandleDeployService runs the deployment workflow for a service
func (h *Handler) HandleDeployService(w http.ResponseWriter, r *http.Request) {
	record, err := h.app.DeployService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, record)
}

// HandleCreateToken assigns the service's token address
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	record, err := h.app.CreateToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, record)
}

// HandleCreateAccess returns the credential bundle for a provisioned service
func (h *Handler) HandleCreateAccess(w http.ResponseWriter, r *http.Request) {
	grant, err := h.app.CreateAccess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, grant)
}

// HandleStats returns aggregate statistics about all services
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.Stats(r.Context()))
}

// HandleServiceStatus returns detailed status information for a service
func (h *Handler) HandleServiceStatus(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.StatusDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonResponse(w, detail)
}

// serviceError maps the registry error taxonomy onto HTTP status codes
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	var (
		validationErr   *registry.ValidationError
		transitionErr   *registry.TransitionError
		conflictErr     *registry.ConflictError
		preconditionErr *registry.PreconditionError
	)

	switch {
	case errors.Is(err, registry.ErrNotFound):
		h.jsonError(w, "Service not found", http.StatusNotFound)
	case errors.As(err, &validationErr):
		h.jsonError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &preconditionErr):
		h.jsonError(w, preconditionErr.Error(), http.StatusBadRequest)
	case errors.As(err, &transitionErr):
		h.jsonError(w, transitionErr.Error(), http.StatusConflict)
	case errors.As(err, &conflictErr):
		h.jsonError(w, conflictErr.Error(), http.StatusConflict)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
