// Package conversation provides CRUD over conversation records and their
// ordered message lists, behind one interface with a backend per storage
// mode. Callers pick an implementation once and never branch on mode again.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/pkg/logger"
	"github.com/blackridder22/AutoGPT/pkg/metrics"
)

var (
	// ErrStorageDisabled distinguishes "no storage configured" from "no
	// conversations yet" on list operations.
	ErrStorageDisabled = errors.New("conversation storage is disabled")

	// ErrNotFound is returned when appending to an unknown conversation.
	ErrNotFound = errors.New("conversation not found")
)

// Store is the conversation persistence contract.
type Store interface {
	// Mode reports which backend this store writes to.
	Mode() model.StorageMode

	// Create allocates a new conversation and returns it. Remote mode uses
	// the server-assigned id; other modes mint one locally.
	Create(ctx context.Context, title string) (model.Conversation, error)

	// Load fetches the full ordered message list. An absent conversation
	// yields an empty list, not an error, to tolerate stale references.
	Load(ctx context.Context, id string) ([]model.Message, error)

	// Append adds a message and bumps the conversation's updated_at.
	Append(ctx context.Context, id string, role model.Role, content, fileData, fileName string) error

	// List returns summaries ordered by updated_at descending, or
	// ErrStorageDisabled in none mode.
	List(ctx context.Context) ([]model.ConversationSummary, error)

	// Delete removes the conversation and its messages.
	Delete(ctx context.Context, id string) error
}

// noneStore is the no-op backend: conversations exist only as ids for the
// lifetime of the session.
type noneStore struct {
	log *logger.Logger
}

// NewNone returns the storage-disabled backend.
func NewNone(log *logger.Logger) Store {
	return &noneStore{log: log.WithComponent("conversation.none")}
}

func (s *noneStore) Mode() model.StorageMode { return model.StorageModeNone }

func (s *noneStore) Create(ctx context.Context, title string) (model.Conversation, error) {
	now := time.Now().UTC()
	conv := model.Conversation{
		ID:        newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}
	metrics.ConversationsTotal.WithLabelValues(string(model.StorageModeNone)).Inc()
	return conv, nil
}

func (s *noneStore) Load(ctx context.Context, id string) ([]model.Message, error) {
	return nil, nil
}

func (s *noneStore) Append(ctx context.Context, id string, role model.Role, content, fileData, fileName string) error {
	return nil
}

func (s *noneStore) List(ctx context.Context) ([]model.ConversationSummary, error) {
	return nil, ErrStorageDisabled
}

func (s *noneStore) Delete(ctx context.Context, id string) error {
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func message(role model.Role, content, fileData, fileName string) model.Message {
	msg := model.Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if fileData != "" {
		msg.FileData = &fileData
	}
	if fileName != "" {
		msg.FileName = &fileName
	}
	return msg
}
