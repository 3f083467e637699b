package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/events"
	"github.com/blackridder22/AutoGPT/internal/middleware"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

// ConversationHandler exposes conversation CRUD and the active pointer.
type ConversationHandler struct {
	session *session.Session
	events  *events.Publisher
	log     *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(sess *session.Session, ev *events.Publisher, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		session: sess,
		events:  ev,
		log:     log.WithComponent("handler.conversations"),
	}
}

// List handles GET /api/v1/conversations. With storage disabled the response
// carries a marker instead of an empty list.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.session.Store().List(r.Context())
	if err != nil {
		if errors.Is(err, conversation.ErrStorageDisabled) {
			writeJSON(w, http.StatusOK, model.ListConversationsResponse{StorageDisabled: true})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{Conversations: summaries})
}

// Create handles POST /api/v1/conversations. The new conversation becomes the
// active one.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.session.StartNew(r.Context(), req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.events.Publish(r.Context(), model.Event{
		Type:           model.EventTypeConversationCreated,
		ConversationID: id,
	})
	writeJSON(w, http.StatusCreated, model.CurrentConversationResponse{
		ConversationID: id,
		StorageMode:    h.session.Mode(),
	})
}

// Current handles GET /api/v1/conversations/current
func (h *ConversationHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.CurrentConversationResponse{
		ConversationID: h.session.ConversationID(),
		StorageMode:    h.session.Mode(),
	})
}

// Switch handles POST /api/v1/conversations/current
func (h *ConversationHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.session.Switch(r.Context(), req.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.CurrentConversationResponse{
		ConversationID: req.ID,
		StorageMode:    h.session.Mode(),
	})
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.session.Store().Load(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.Message{"messages": messages})
}

// Delete handles DELETE /api/v1/conversations/{id}. Deleting the active
// conversation resets the session pointer.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.session.Store().Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.session.HandleDeleted(r.Context(), id)
	h.events.Publish(r.Context(), model.Event{
		Type:           model.EventTypeConversationDeleted,
		ConversationID: id,
	})
	h.log.Info("conversation deleted", zap.String("conversation_id", id))
	w.WriteHeader(http.StatusNoContent)
}
