// Package handler implements the HTTP surface of the panel backend.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/pipeline"
	"github.com/blackridder22/AutoGPT/internal/registry"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeDomainError maps sentinel errors from the core packages onto HTTP
// statuses, with the error text passed through to the caller.
func writeDomainError(w http.ResponseWriter, err error) {
	var whErr *pipeline.WebhookError
	var respErr *pipeline.ResponseError

	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrInvalid),
		errors.Is(err, registry.ErrNoWebhook),
		errors.Is(err, pipeline.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrSendInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &whErr), errors.As(err, &respErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads a request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
