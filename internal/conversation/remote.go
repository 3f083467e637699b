package conversation

import (
	"context"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/supabase"
	"github.com/blackridder22/AutoGPT/pkg/logger"
	"github.com/blackridder22/AutoGPT/pkg/metrics"
)

// remoteStore writes through to the Supabase table store. No local caching:
// a failed remote call leaves no optimistic local record behind.
type remoteStore struct {
	client *supabase.Client
	log    *logger.Logger
}

// NewRemote returns the Supabase-backed store.
func NewRemote(client *supabase.Client, log *logger.Logger) Store {
	return &remoteStore{
		client: client,
		log:    log.WithComponent("conversation.remote"),
	}
}

func (s *remoteStore) Mode() model.StorageMode { return model.StorageModeRemote }

func (s *remoteStore) Create(ctx context.Context, title string) (model.Conversation, error) {
	conv, err := s.client.CreateConversation(ctx, title)
	metrics.RecordStorageOp("remote", "create", err)
	if err != nil {
		return model.Conversation{}, err
	}
	metrics.ConversationsTotal.WithLabelValues("remote").Inc()
	return conv, nil
}

func (s *remoteStore) Load(ctx context.Context, id string) ([]model.Message, error) {
	messages, err := s.client.GetMessages(ctx, id)
	metrics.RecordStorageOp("remote", "load", err)
	return messages, err
}

func (s *remoteStore) Append(ctx context.Context, id string, role model.Role, content, fileData, fileName string) error {
	err := s.client.AddMessage(ctx, id, role, content, fileData, fileName)
	metrics.RecordStorageOp("remote", "append", err)
	if err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues("remote", string(role)).Inc()
	return nil
}

func (s *remoteStore) List(ctx context.Context) ([]model.ConversationSummary, error) {
	summaries, err := s.client.ListConversations(ctx, 0)
	metrics.RecordStorageOp("remote", "list", err)
	return summaries, err
}

// Ping probes the remote project. Used by the readiness endpoint.
func (s *remoteStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *remoteStore) Delete(ctx context.Context, id string) error {
	err := s.client.DeleteConversation(ctx, id)
	metrics.RecordStorageOp("remote", "delete", err)
	return err
}
