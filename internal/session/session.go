// Package session owns the panel session state: the active conversation
// pointer and the transient webhook override. It replaces what would
// otherwise be ambient globals with one object handed to the pipeline and
// handlers; all mutation goes through it.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

const keyLastConversation = "lastConversationId"

const defaultTitle = "New Conversation"

// existenceProber is implemented by stores that can cheaply tell whether a
// conversation record is present. Used to drop stale last-used pointers.
type existenceProber interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Session tracks the active conversation across reloads and the
// session-scoped webhook override. The override is never persisted.
type Session struct {
	kv  storage.KV
	log *logger.Logger

	mu             sync.Mutex
	store          conversation.Store
	conversationID string
	overrideID     string
}

// New creates a session over the given store. Call Restore before use.
func New(kv storage.KV, store conversation.Store, log *logger.Logger) *Session {
	return &Session{
		kv:    kv,
		store: store,
		log:   log.WithComponent("session"),
	}
}

// Store returns the active conversation store.
func (s *Session) Store() conversation.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Mode returns the active storage mode.
func (s *Session) Mode() model.StorageMode {
	return s.Store().Mode()
}

// Restore moves the session from UNSET to ACTIVE: the last-used conversation
// id is adopted when it is still valid for the current mode, otherwise a
// fresh conversation is created. In none mode persisted pointers are never
// resurrected; the session always starts fresh.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Mode() != model.StorageModeNone {
		var lastID string
		found, err := storage.GetJSON(ctx, s.kv, keyLastConversation, &lastID)
		if err != nil {
			s.log.Warn("could not read last conversation id", zap.Error(err))
		}
		if found && lastID != "" && s.validForStore(ctx, lastID) {
			s.conversationID = lastID
			s.log.Info("restored conversation", zap.String("conversation_id", lastID))
			return nil
		}
	}

	return s.startNewLocked(ctx, defaultTitle)
}

func (s *Session) validForStore(ctx context.Context, id string) bool {
	prober, ok := s.store.(existenceProber)
	if !ok {
		// Backends without a cheap probe tolerate stale ids: an absent
		// conversation loads as an empty transcript.
		return true
	}
	exists, err := prober.Exists(ctx, id)
	if err != nil {
		s.log.Warn("existence probe failed, keeping last-used id", zap.Error(err))
		return true
	}
	return exists
}

func (s *Session) startNewLocked(ctx context.Context, title string) error {
	conv, err := s.store.Create(ctx, title)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	s.conversationID = conv.ID
	if err := s.kv.Set(ctx, map[string]any{keyLastConversation: conv.ID}); err != nil {
		s.log.Warn("could not persist last conversation id", zap.Error(err))
	}
	return nil
}

// StartNew creates a fresh conversation and makes it active.
func (s *Session) StartNew(ctx context.Context, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title == "" {
		title = defaultTitle
	}
	if err := s.startNewLocked(ctx, title); err != nil {
		return "", err
	}
	return s.conversationID, nil
}

// EnsureConversation returns the active conversation id, creating one first
// if the session has none.
func (s *Session) EnsureConversation(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID == "" {
		if err := s.startNewLocked(ctx, defaultTitle); err != nil {
			return "", err
		}
	}
	return s.conversationID, nil
}

// ConversationID returns the active conversation id, which may be empty.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Switch makes an existing conversation the active one.
func (s *Session) Switch(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
	if err := s.kv.Set(ctx, map[string]any{keyLastConversation: id}); err != nil {
		s.log.Warn("could not persist last conversation id", zap.Error(err))
	}
	return nil
}

// HandleDeleted clears the active pointer when the deleted conversation was
// active, so the next send falls back to a fresh conversation.
func (s *Session) HandleDeleted(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID != id {
		return
	}
	s.conversationID = ""
	if err := s.kv.Remove(ctx, keyLastConversation); err != nil {
		s.log.Warn("could not clear last conversation id", zap.Error(err))
	}
}

// SwitchStore swaps the conversation backend after a storage mode change.
// History is not migrated; the session starts a fresh active conversation
// under the new mode.
func (s *Session) SwitchStore(ctx context.Context, store conversation.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.conversationID = ""
	return s.startNewLocked(ctx, defaultTitle)
}

// OverrideID returns the session webhook override, or empty when unset.
func (s *Session) OverrideID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrideID
}

// SetOverride points the session at a one-shot webhook choice.
func (s *Session) SetOverride(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideID = id
}

// ClearOverride drops the session override.
func (s *Session) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideID = ""
}
