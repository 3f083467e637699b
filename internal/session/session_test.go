package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

func newTestKV(t *testing.T) *storage.Bolt {
	t.Helper()
	kv, err := storage.OpenBolt(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newLocalSession(t *testing.T, kv storage.KV) *Session {
	t.Helper()
	log := logger.NewNop()
	return New(kv, conversation.NewLocal(kv, log), log)
}

func TestRestoreAdoptsLastConversation(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	first := newLocalSession(t, kv)
	require.NoError(t, first.Restore(ctx))
	id := first.ConversationID()
	require.NotEmpty(t, id)

	// A reload adopts the same conversation instead of creating a new one.
	second := newLocalSession(t, kv)
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, id, second.ConversationID())

	summaries, err := second.Store().List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestRestoreDropsStalePointer(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Set(ctx, map[string]any{"lastConversationId": "gone"}))

	sess := newLocalSession(t, kv)
	require.NoError(t, sess.Restore(ctx))
	assert.NotEmpty(t, sess.ConversationID())
	assert.NotEqual(t, "gone", sess.ConversationID(), "a pointer to a deleted conversation is not resurrected")
}

func TestRestoreNoneModeAlwaysFresh(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Set(ctx, map[string]any{"lastConversationId": "old-id"}))

	log := logger.NewNop()
	sess := New(kv, conversation.NewNone(log), log)
	require.NoError(t, sess.Restore(ctx))
	assert.NotEqual(t, "old-id", sess.ConversationID())
}

func TestEnsureConversationIsStable(t *testing.T) {
	ctx := context.Background()
	sess := newLocalSession(t, newTestKV(t))

	id, err := sess.EnsureConversation(ctx)
	require.NoError(t, err)
	again, err := sess.EnsureConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestSwitchPersistsPointer(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	sess := newLocalSession(t, kv)
	require.NoError(t, sess.Restore(ctx))

	other, err := sess.Store().Create(ctx, "Other")
	require.NoError(t, err)
	require.NoError(t, sess.Switch(ctx, other.ID))
	assert.Equal(t, other.ID, sess.ConversationID())

	reloaded := newLocalSession(t, kv)
	require.NoError(t, reloaded.Restore(ctx))
	assert.Equal(t, other.ID, reloaded.ConversationID())
}

func TestSwitchRejectsEmptyID(t *testing.T) {
	sess := newLocalSession(t, newTestKV(t))
	assert.Error(t, sess.Switch(context.Background(), ""))
}

func TestHandleDeletedClearsActivePointer(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	sess := newLocalSession(t, kv)
	require.NoError(t, sess.Restore(ctx))
	active := sess.ConversationID()

	// Deleting an inactive conversation leaves the session alone.
	sess.HandleDeleted(ctx, "someone-else")
	assert.Equal(t, active, sess.ConversationID())

	sess.HandleDeleted(ctx, active)
	assert.Empty(t, sess.ConversationID())

	values, err := kv.Get(ctx, "lastConversationId")
	require.NoError(t, err)
	assert.Empty(t, values, "the persisted pointer is removed with the active conversation")
}

func TestSwitchStoreStartsFresh(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	log := logger.NewNop()

	sess := newLocalSession(t, kv)
	require.NoError(t, sess.Restore(ctx))
	localID := sess.ConversationID()
	require.NoError(t, sess.Store().Append(ctx, localID, model.RoleUser, "kept locally", "", ""))

	// Switching to disabled storage starts an empty conversation; nothing
	// migrates across modes.
	require.NoError(t, sess.SwitchStore(ctx, conversation.NewNone(log)))
	assert.Equal(t, model.StorageModeNone, sess.Mode())
	assert.NotEqual(t, localID, sess.ConversationID())

	messages, err := sess.Store().Load(ctx, sess.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, messages)

	// The local history survives the mode change and is still readable.
	local := conversation.NewLocal(kv, log)
	messages, err = local.Load(ctx, localID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "kept locally", messages[0].Content)
}

func TestOverrideLifecycle(t *testing.T) {
	sess := newLocalSession(t, newTestKV(t))
	assert.Empty(t, sess.OverrideID())

	sess.SetOverride("wh-1")
	assert.Equal(t, "wh-1", sess.OverrideID())

	sess.ClearOverride()
	assert.Empty(t, sess.OverrideID())
}
