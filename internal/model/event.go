package model

import (
	"time"
)

// EventType represents the type of panel event.
type EventType string

const (
	EventTypeConversationCreated EventType = "conversation_created"
	EventTypeConversationDeleted EventType = "conversation_deleted"
	EventTypeSendSucceeded       EventType = "send_succeeded"
	EventTypeSendFailed          EventType = "send_failed"
)

// Event is published to the event feed when one is configured. It carries no
// message content, only turn metadata.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	WebhookID      string    `json:"webhook_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
