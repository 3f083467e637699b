package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
	"github.com/blackridder22/AutoGPT/pkg/metrics"
)

const conversationKeyPrefix = "conversation_"

// localStore keeps one JSON blob per conversation in the device store.
type localStore struct {
	kv  storage.KV
	log *logger.Logger
}

// NewLocal returns the device-storage backend.
func NewLocal(kv storage.KV, log *logger.Logger) Store {
	return &localStore{
		kv:  kv,
		log: log.WithComponent("conversation.local"),
	}
}

func (s *localStore) Mode() model.StorageMode { return model.StorageModeLocal }

func conversationKey(id string) string { return conversationKeyPrefix + id }

func (s *localStore) Create(ctx context.Context, title string) (model.Conversation, error) {
	now := time.Now().UTC()
	conv := model.Conversation{
		ID:        newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}
	err := s.kv.Set(ctx, map[string]any{conversationKey(conv.ID): conv})
	metrics.RecordStorageOp("local", "create", err)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues("local").Inc()
	return conv, nil
}

func (s *localStore) load(ctx context.Context, id string) (model.Conversation, bool, error) {
	var conv model.Conversation
	found, err := storage.GetJSON(ctx, s.kv, conversationKey(id), &conv)
	if err != nil {
		return model.Conversation{}, found, err
	}
	return conv, found, nil
}

// Exists reports whether a conversation blob is present, without decoding it.
func (s *localStore) Exists(ctx context.Context, id string) (bool, error) {
	values, err := s.kv.Get(ctx, conversationKey(id))
	if err != nil {
		return false, err
	}
	_, ok := values[conversationKey(id)]
	return ok, nil
}

func (s *localStore) Load(ctx context.Context, id string) ([]model.Message, error) {
	conv, found, err := s.load(ctx, id)
	metrics.RecordStorageOp("local", "load", err)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !found {
		return nil, nil
	}
	return conv.Messages, nil
}

func (s *localStore) Append(ctx context.Context, id string, role model.Role, content, fileData, fileName string) error {
	conv, found, err := s.load(ctx, id)
	if err != nil {
		metrics.RecordStorageOp("local", "append", err)
		return fmt.Errorf("append message: %w", err)
	}
	if !found {
		metrics.RecordStorageOp("local", "append", ErrNotFound)
		return ErrNotFound
	}

	conv.Messages = append(conv.Messages, message(role, content, fileData, fileName))
	conv.UpdatedAt = time.Now().UTC()

	err = s.kv.Set(ctx, map[string]any{conversationKey(id): conv})
	metrics.RecordStorageOp("local", "append", err)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("local", string(role)).Inc()
	return nil
}

func (s *localStore) List(ctx context.Context) ([]model.ConversationSummary, error) {
	keys, err := s.kv.List(ctx, conversationKeyPrefix)
	if err != nil {
		metrics.RecordStorageOp("local", "list", err)
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(keys) == 0 {
		return []model.ConversationSummary{}, nil
	}

	values, err := s.kv.Get(ctx, keys...)
	metrics.RecordStorageOp("local", "list", err)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]model.ConversationSummary, 0, len(values))
	for key, raw := range values {
		var conv model.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			// A malformed blob is skipped, not fatal to the listing.
			s.log.Warn("skipping unreadable conversation blob", zap.String("key", key))
			continue
		}
		summaries = append(summaries, model.ConversationSummary{
			ID:        conv.ID,
			Title:     conv.Title,
			UpdatedAt: conv.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *localStore) Delete(ctx context.Context, id string) error {
	err := s.kv.Remove(ctx, conversationKey(id))
	metrics.RecordStorageOp("local", "delete", err)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
