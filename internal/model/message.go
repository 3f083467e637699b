package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Insertion order within a
// conversation is the canonical display order; messages are append-only.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	FileData  *string   `json:"file_data,omitempty"`
	FileName  *string   `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the wire shape of a history entry in the webhook payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendRequest is the request for one send pipeline turn. FileText carries the
// pre-extracted document text (extraction itself is the panel's job), FileData
// the data-URI payload persisted alongside the user message.
type SendRequest struct {
	Text     string `json:"text"`
	FileText string `json:"fileText,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileData string `json:"fileData,omitempty"`
}

// SendResponse is the result of a successful send turn.
type SendResponse struct {
	ConversationID string      `json:"conversation_id"`
	Reply          string      `json:"reply"`
	WebhookUsed    WebhookUsed `json:"webhook_used"`
}

// WebhookUsed describes which webhook served a send, for logging or debugging
// on the receiving server.
type WebhookUsed struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsOverride bool   `json:"isOverride"`
	IsFallback bool   `json:"isFallback,omitempty"`
}

// WebhookPayload is the body POSTed to the resolved webhook.
type WebhookPayload struct {
	ChatInput       string        `json:"chatInput"`
	SessionID       string        `json:"sessionId"`
	ContextMessages []ChatMessage `json:"contextMessages,omitempty"`
	WebhookUsed     WebhookUsed   `json:"webhookUsed"`
}
