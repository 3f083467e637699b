// Package pipeline orchestrates a single chat turn: resolve the webhook,
// build the payload, POST it, parse the reply, and persist both sides.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/events"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/registry"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/pkg/logger"
	"github.com/blackridder22/AutoGPT/pkg/metrics"
)

var (
	// ErrSendInFlight rejects a send while another is outstanding. One
	// pending request at a time; there is no queue.
	ErrSendInFlight = errors.New("a send is already in progress")

	// ErrEmptyPrompt rejects a turn with neither text nor a staged file.
	ErrEmptyPrompt = errors.New("nothing to send")
)

// WebhookError is a non-2xx reply from the webhook, carrying whatever
// human-readable detail could be extracted from the body.
type WebhookError struct {
	Status int
	Detail string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Status, e.Detail)
}

// ResponseError is a 2xx reply whose body does not match the accepted shape:
// a JSON array whose first element has a string output field.
type ResponseError struct {
	Reason string
}

func (e *ResponseError) Error() string {
	return "invalid webhook response: " + e.Reason
}

// maxContextMessages caps the history window included in the payload.
const maxContextMessages = 20

// Sender runs send turns. It holds no conversation state of its own; the
// session carries the active conversation and override.
type Sender struct {
	registry *registry.Registry
	events   *events.Publisher
	client   *http.Client
	log      *logger.Logger

	// busy is the single-pending-request gate.
	busy atomic.Bool
}

// New creates a sender. The HTTP client deliberately has no timeout beyond
// the platform default; an in-flight send cannot be aborted.
func New(reg *registry.Registry, ev *events.Publisher, log *logger.Logger) *Sender {
	return &Sender{
		registry: reg,
		events:   ev,
		client:   &http.Client{},
		log:      log.WithComponent("pipeline"),
	}
}

// Send runs one turn. Resolution failures surface before any network call;
// webhook and parse failures come back after the user message has already
// been persisted, which is the accepted crash window between the two sides
// of an exchange.
func (p *Sender) Send(ctx context.Context, sess *session.Session, req model.SendRequest) (model.SendResponse, error) {
	text := strings.TrimSpace(req.Text)
	hasFile := req.FileText != "" || req.FileData != "" || req.FileName != ""
	if text == "" && !hasFile {
		return model.SendResponse{}, ErrEmptyPrompt
	}

	if !p.busy.CompareAndSwap(false, true) {
		return model.SendResponse{}, ErrSendInFlight
	}
	defer p.busy.Store(false)

	start := time.Now()
	resp, err := p.send(ctx, sess, text, req)
	outcome := "success"
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNoWebhook):
			outcome = "config_error"
		default:
			outcome = "failed"
		}
		p.events.Publish(ctx, model.Event{
			Type:           model.EventTypeSendFailed,
			ConversationID: sess.ConversationID(),
			Reason:         err.Error(),
		})
	} else {
		p.events.Publish(ctx, model.Event{
			Type:           model.EventTypeSendSucceeded,
			ConversationID: resp.ConversationID,
			WebhookID:      resp.WebhookUsed.ID,
		})
	}
	metrics.RecordSend(outcome, time.Since(start).Seconds())
	return resp, err
}

func (p *Sender) send(ctx context.Context, sess *session.Session, text string, req model.SendRequest) (model.SendResponse, error) {
	// Resolution comes first: with nothing configured the turn fails as a
	// configuration error and no network call is made.
	res, err := p.registry.ResolveForSend(sess.OverrideID())
	if res.OverrideCleared {
		sess.ClearOverride()
	}
	if err != nil {
		return model.SendResponse{}, err
	}
	metrics.WebhookResolutionsTotal.WithLabelValues(string(res.Source)).Inc()

	conversationID, err := sess.EnsureConversation(ctx)
	if err != nil {
		return model.SendResponse{}, err
	}

	store := sess.Store()
	persisting := store.Mode() != model.StorageModeNone

	var history []model.ChatMessage
	if persisting {
		messages, err := store.Load(ctx, conversationID)
		if err != nil {
			p.log.Warn("could not load history for context", zap.Error(err))
		} else {
			if len(messages) > maxContextMessages {
				messages = messages[len(messages)-maxContextMessages:]
			}
			history = make([]model.ChatMessage, len(messages))
			for i, msg := range messages {
				history[i] = model.ChatMessage{Role: string(msg.Role), Content: msg.Content}
			}
		}
	}

	chatInput := composeChatInput(text, req.FileText, req.FileName)
	userContent := chatInput
	if userContent == "" {
		userContent = "Attached a file"
	}

	// The user side of the exchange is persisted before the webhook reply is
	// awaited; a persistence failure is reported but does not block the turn.
	if persisting {
		if err := store.Append(ctx, conversationID, model.RoleUser, userContent, req.FileData, req.FileName); err != nil {
			p.log.Error("could not persist user message", zap.Error(err))
		}
	}

	used := model.WebhookUsed{
		ID:         res.Webhook.ID,
		Name:       res.Webhook.Name,
		IsOverride: res.Source == registry.SourceOverride,
		IsFallback: res.Source == registry.SourceFallback,
	}

	reply, err := p.post(ctx, res.Webhook.URL, model.WebhookPayload{
		ChatInput:       chatInput,
		SessionID:       conversationID,
		ContextMessages: history,
		WebhookUsed:     used,
	})
	if err != nil {
		return model.SendResponse{}, err
	}

	if persisting {
		if err := store.Append(ctx, conversationID, model.RoleAssistant, reply, "", ""); err != nil {
			p.log.Error("could not persist assistant message", zap.Error(err))
		}
	}

	return model.SendResponse{
		ConversationID: conversationID,
		Reply:          reply,
		WebhookUsed:    used,
	}, nil
}

// post issues the single POST for this turn. No retry.
func (p *Sender) post(ctx context.Context, url string, payload model.WebhookPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("webhook request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read webhook response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", &WebhookError{
			Status: httpResp.StatusCode,
			Detail: errorDetail(httpResp.StatusCode, respBody),
		}
	}

	return parseReply(respBody)
}

// parseReply accepts exactly one shape: a JSON array whose first element is
// an object with a non-null string output field. Anything else is a parse
// failure, not a partial success.
func parseReply(body []byte) (string, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err != nil {
		return "", &ResponseError{Reason: "expected a JSON array"}
	}
	if len(arr) == 0 {
		return "", &ResponseError{Reason: "received an empty array"}
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(arr[0], &first); err != nil {
		return "", &ResponseError{Reason: "first array element is not an object"}
	}

	raw, ok := first["output"]
	if !ok {
		return "", &ResponseError{Reason: "first array element is missing the output field"}
	}
	if string(raw) == "null" {
		return "", &ResponseError{Reason: "output field is null"}
	}

	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &ResponseError{Reason: "output field is not a string"}
	}
	return out, nil
}

// errorDetail digs a human-readable message out of an error body: a JSON
// message/error field, then the plain-text body, then the status line.
func errorDetail(status int, body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "error"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
		if len(obj) > 0 {
			if compact, err := json.Marshal(obj); err == nil {
				return string(compact)
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

// composeChatInput merges the prompt with extracted document text under the
// fixed template the receiving workflows expect.
func composeChatInput(text, fileText, fileName string) string {
	if fileText == "" {
		return text
	}

	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	b.WriteString("### Document: ")
	b.WriteString(fileName)
	b.WriteString(" ###\n\n")
	b.WriteString(fileText)
	b.WriteString("\n\n")
	if text != "" {
		b.WriteString("User query: ")
		b.WriteString(text)
	} else {
		b.WriteString("Please analyze this document.")
	}
	return b.String()
}
