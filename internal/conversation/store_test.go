package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestLocalCreateLoadAppend(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(newTestKV(t), logger.NewNop())

	conv, err := store.Create(ctx, "Budget review")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Budget review", conv.Title)

	messages, err := store.Load(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	require.NoError(t, store.Append(ctx, conv.ID, model.RoleUser, "hello", "", ""))
	require.NoError(t, store.Append(ctx, conv.ID, model.RoleAssistant, "hi there", "", ""))

	messages, err = store.Load(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestLocalAppendKeepsFileMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(newTestKV(t), logger.NewNop())

	conv, err := store.Create(ctx, "Files")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, conv.ID, model.RoleUser, "see attached",
		"data:application/pdf;base64,AAAA", "report.pdf"))

	messages, err := store.Load(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].FileData)
	assert.Equal(t, "data:application/pdf;base64,AAAA", *messages[0].FileData)
	require.NotNil(t, messages[0].FileName)
	assert.Equal(t, "report.pdf", *messages[0].FileName)
}

func TestLocalAppendToUnknownConversation(t *testing.T) {
	store := NewLocal(newTestKV(t), logger.NewNop())
	err := store.Append(context.Background(), "missing", model.RoleUser, "hello", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalLoadAbsentConversation(t *testing.T) {
	store := NewLocal(newTestKV(t), logger.NewNop())
	messages, err := store.Load(context.Background(), "missing")
	require.NoError(t, err, "a stale reference loads as an empty transcript")
	assert.Empty(t, messages)
}

func TestLocalListOrdersByRecency(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(newTestKV(t), logger.NewNop())

	first, err := store.Create(ctx, "First")
	require.NoError(t, err)
	second, err := store.Create(ctx, "Second")
	require.NoError(t, err)

	// Appending to the older conversation makes it the most recent.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Append(ctx, first.ID, model.RoleUser, "bump", "", ""))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, second.ID, summaries[1].ID)
}

func TestLocalListSkipsMalformedBlob(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	store := NewLocal(kv, logger.NewNop())

	conv, err := store.Create(ctx, "Good")
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, map[string]any{"conversation_bad": "not-an-object"}))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, conv.ID, summaries[0].ID)
}

func TestLocalDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(newTestKV(t), logger.NewNop())

	conv, err := store.Create(ctx, "Doomed")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, conv.ID))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	// Deleting twice is harmless.
	assert.NoError(t, store.Delete(ctx, conv.ID))
}

func TestLocalExists(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(newTestKV(t), logger.NewNop()).(*localStore)

	conv, err := store.Create(ctx, "Probe")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoneStoreBehaviour(t *testing.T) {
	ctx := context.Background()
	store := NewNone(logger.NewNop())

	conv, err := store.Create(ctx, "Ephemeral")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID, "none mode still mints session-scoped ids")

	require.NoError(t, store.Append(ctx, conv.ID, model.RoleUser, "hello", "", ""))
	messages, err := store.Load(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages, "nothing is retained")

	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	assert.NoError(t, store.Delete(ctx, conv.ID))
}

func TestNewStorePicksBackend(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	log := logger.NewNop()

	local, err := NewStore(ctx, model.StorageSettings{Mode: model.StorageModeLocal}, kv, log)
	require.NoError(t, err)
	assert.Equal(t, model.StorageModeLocal, local.Mode())

	none, err := NewStore(ctx, model.StorageSettings{Mode: model.StorageModeNone}, kv, log)
	require.NoError(t, err)
	assert.Equal(t, model.StorageModeNone, none.Mode())

	_, err = NewStore(ctx, model.StorageSettings{Mode: model.StorageModeRemote}, kv, log)
	assert.Error(t, err, "remote mode without credentials is rejected")
}
