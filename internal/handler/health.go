package handler

import (
	"context"
	"net/http"

	"github.com/blackridder22/AutoGPT/internal/events"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/internal/storage"
)

// pinger is implemented by storage backends that can probe their remote side.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	kv      storage.KV
	session *session.Session
	events  *events.Publisher
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(kv storage.KV, sess *session.Session, ev *events.Publisher) *HealthHandler {
	return &HealthHandler{
		kv:      kv,
		session: sess,
		events:  ev,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The device store must answer, the event feed must
// be connected when configured, and a remote conversation backend must accept
// a probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.kv.Get(r.Context(), "webhooksData"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "device store unavailable",
		})
		return
	}

	if !h.events.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "event feed not connected",
		})
		return
	}

	if p, ok := h.session.Store().(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "conversation storage unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
