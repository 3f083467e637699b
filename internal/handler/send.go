package handler

import (
	"net/http"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/pipeline"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

// SendHandler runs chat turns through the send pipeline.
type SendHandler struct {
	sender  *pipeline.Sender
	session *session.Session
	log     *logger.Logger
}

// NewSendHandler creates a new send handler.
func NewSendHandler(sender *pipeline.Sender, sess *session.Session, log *logger.Logger) *SendHandler {
	return &SendHandler{
		sender:  sender,
		session: sess,
		log:     log.WithComponent("handler.send"),
	}
}

// Send handles POST /api/v1/send. A second send while one is in flight gets
// 409; the client retries after the pending turn settles.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.sender.Send(r.Context(), h.session, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
