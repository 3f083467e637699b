package model

import (
	"time"
)

// Conversation is a titled, ordered sequence of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Model     *string   `json:"model"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// ListConversationsResponse is the response for listing conversations. When
// conversation storage is disabled the summaries are absent (not empty) and
// StorageDisabled is set, so the UI can distinguish "no storage" from "no
// conversations yet".
type ListConversationsResponse struct {
	Conversations   []ConversationSummary `json:"conversations,omitempty"`
	StorageDisabled bool                  `json:"storage_disabled,omitempty"`
}

// CurrentConversationResponse reports the active conversation pointer.
type CurrentConversationResponse struct {
	ConversationID string      `json:"conversation_id"`
	StorageMode    StorageMode `json:"storage_mode"`
}

// SwitchConversationRequest switches the active conversation.
type SwitchConversationRequest struct {
	ID string `json:"id"`
}
