package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/middleware"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/registry"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

// WebhookHandler exposes the webhook registry and the session override.
type WebhookHandler struct {
	registry *registry.Registry
	session  *session.Session
	log      *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(reg *registry.Registry, sess *session.Session, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		registry: reg,
		session:  sess,
		log:      log.WithComponent("handler.webhooks"),
	}
}

// webhookListResponse is the registry view the panel renders.
type webhookListResponse struct {
	Webhooks         []model.Webhook `json:"webhooks"`
	DefaultWebhookID string          `json:"defaultWebhookId,omitempty"`
	OverrideID       string          `json:"overrideId,omitempty"`
}

// List handles GET /api/v1/webhooks
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	set := h.registry.Snapshot()
	writeJSON(w, http.StatusOK, webhookListResponse{
		Webhooks:         set.Webhooks,
		DefaultWebhookID: set.DefaultWebhookID,
		OverrideID:       h.session.OverrideID(),
	})
}

// Create handles POST /api/v1/webhooks
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateWebhookName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateWebhookURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wh, err := h.registry.Add(r.Context(), req.Name, req.URL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

// Delete handles DELETE /api/v1/webhooks/{id}
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault handles PUT /api/v1/webhooks/default
func (h *WebhookHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	var req model.SetDefaultWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.registry.SetDefault(r.Context(), req.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetOverride handles PUT /api/v1/webhooks/override. An empty id clears the
// override. The id is checked against the registry up front; it can still go
// stale later, which resolution handles.
func (h *WebhookHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req model.SetOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		h.session.ClearOverride()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, ok := h.registry.Snapshot().Find(req.ID); !ok {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	h.session.SetOverride(req.ID)
	h.log.Info("session override set", zap.String("webhook_id", req.ID))
	w.WriteHeader(http.StatusNoContent)
}

// ClearOverride handles DELETE /api/v1/webhooks/override
func (h *WebhookHandler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	h.session.ClearOverride()
	w.WriteHeader(http.StatusNoContent)
}

// Suggest handles GET /api/v1/webhooks/suggest?text=...
func (h *WebhookHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	matches := registry.Suggest(h.registry.Snapshot(), r.URL.Query().Get("text"))
	if matches == nil {
		matches = []model.Webhook{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.Webhook{"suggestions": matches})
}
