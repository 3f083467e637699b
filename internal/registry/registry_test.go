package registry

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

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

func newLoadedRegistry(t *testing.T, kv storage.KV) *Registry {
	t.Helper()
	r := New(kv, logger.NewNop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

// flakyKV wraps a real store and fails writes on demand.
type flakyKV struct {
	storage.KV
	failSet bool
}

func (f *flakyKV) Set(ctx context.Context, entries map[string]any) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, entries)
}

func TestFirstAddBecomesDefault(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))

	wh, err := r.Add(ctx, "Prod", "https://example.com/hook")
	require.NoError(t, err)
	assert.NotEmpty(t, wh.ID)
	assert.Equal(t, wh.ID, r.Snapshot().DefaultWebhookID)

	// A second add does not steal the default.
	_, err = r.Add(ctx, "Staging", "https://staging.example.com/hook")
	require.NoError(t, err)
	assert.Equal(t, wh.ID, r.Snapshot().DefaultWebhookID)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))

	cases := []struct {
		name, url string
	}{
		{"", "https://example.com"},
		{"hook", ""},
		{"hook", "not a url"},
		{"hook", "/relative/path"},
		{"hook", "example.com/no-scheme"},
	}
	for _, tc := range cases {
		_, err := r.Add(ctx, tc.name, tc.url)
		assert.ErrorIs(t, err, ErrInvalid, "name=%q url=%q", tc.name, tc.url)
	}
	assert.Empty(t, r.Snapshot().Webhooks, "failed adds must not mutate state")
}

func TestDeleteDefaultReassignsToFirst(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))

	a, _ := r.Add(ctx, "A", "https://a.example.com")
	b, _ := r.Add(ctx, "B", "https://b.example.com")
	c, _ := r.Add(ctx, "C", "https://c.example.com")
	require.NoError(t, r.SetDefault(ctx, b.ID))

	require.NoError(t, r.Delete(ctx, b.ID))
	set := r.Snapshot()
	assert.Equal(t, a.ID, set.DefaultWebhookID, "new default is the first remaining entry")
	assert.Len(t, set.Webhooks, 2)

	require.NoError(t, r.Delete(ctx, a.ID))
	assert.Equal(t, c.ID, r.Snapshot().DefaultWebhookID)

	require.NoError(t, r.Delete(ctx, c.ID))
	assert.Empty(t, r.Snapshot().DefaultWebhookID, "deleting the last webhook unsets the default")
}

func TestDeleteUnknownWebhook(t *testing.T) {
	r := newLoadedRegistry(t, newTestKV(t))
	assert.ErrorIs(t, r.Delete(context.Background(), "nope"), ErrNotFound)
}

func TestAddThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	r := newLoadedRegistry(t, kv)
	a, err := r.Add(ctx, "Alpha", "https://alpha.example.com/hook")
	require.NoError(t, err)
	b, err := r.Add(ctx, "Beta", "https://beta.example.com/hook")
	require.NoError(t, err)
	require.NoError(t, r.SetDefault(ctx, b.ID))
	before := r.Snapshot()

	// Simulate a restart: a fresh registry over the same store.
	reloaded := newLoadedRegistry(t, kv)
	after := reloaded.Snapshot()

	assert.Equal(t, before, after)
	assert.Equal(t, []model.Webhook{a, b}, after.Webhooks)
}

func TestResolveForSendOrder(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))

	// Nothing configured.
	_, err := r.ResolveForSend("")
	assert.ErrorIs(t, err, ErrNoWebhook)

	a, _ := r.Add(ctx, "A", "https://a.example.com")
	b, _ := r.Add(ctx, "B", "https://b.example.com")

	// Default wins without an override.
	res, err := r.ResolveForSend("")
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Webhook.ID)
	assert.Equal(t, SourceDefault, res.Source)

	// A valid override beats the default.
	res, err = r.ResolveForSend(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.Webhook.ID)
	assert.Equal(t, SourceOverride, res.Source)
	assert.False(t, res.OverrideCleared)
}

func TestResolveForSendStaleOverrideFallsBack(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))
	a, _ := r.Add(ctx, "A", "https://a.example.com")
	b, _ := r.Add(ctx, "B", "https://b.example.com")

	require.NoError(t, r.Delete(ctx, b.ID))
	res, err := r.ResolveForSend(b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Webhook.ID)
	assert.Equal(t, SourceDefault, res.Source)
	assert.True(t, res.OverrideCleared, "stale override must be flagged for clearing")
}

func TestResolveForSendFirstEntryFallback(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)

	// Persist a registry with entries but no default, the state a user ends
	// up in when the default field was repaired away.
	set := model.WebhookSet{Webhooks: []model.Webhook{
		{ID: "w1", Name: "One", URL: "https://one.example.com"},
		{ID: "w2", Name: "Two", URL: "https://two.example.com"},
	}}
	require.NoError(t, kv.Set(ctx, map[string]any{"webhooksData": set}))

	r := newLoadedRegistry(t, kv)
	res, err := r.ResolveForSend("")
	require.NoError(t, err)
	assert.Equal(t, "w1", res.Webhook.ID)
	assert.Equal(t, SourceFallback, res.Source, "no default set means a flagged fallback")
}

func TestResolveNeverReturnsDeletedWebhook(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))
	a, _ := r.Add(ctx, "A", "https://a.example.com")
	b, _ := r.Add(ctx, "B", "https://b.example.com")

	require.NoError(t, r.Delete(ctx, a.ID))
	for _, override := range []string{"", a.ID, b.ID} {
		res, err := r.ResolveForSend(override)
		require.NoError(t, err)
		_, exists := r.Snapshot().Find(res.Webhook.ID)
		assert.True(t, exists, "resolved webhook must exist in the registry")
	}
}

func TestLegacyURLMigration(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Set(ctx, map[string]any{"webhookUrl": "https://legacy.example.com/hook"}))

	r := newLoadedRegistry(t, kv)
	set := r.Snapshot()
	require.Len(t, set.Webhooks, 1)
	assert.Equal(t, "Default Webhook", set.Webhooks[0].Name)
	assert.Equal(t, "https://legacy.example.com/hook", set.Webhooks[0].URL)
	assert.Equal(t, set.Webhooks[0].ID, set.DefaultWebhookID)

	// The legacy key is gone and the migration happens once.
	values, err := kv.Get(ctx, "webhookUrl")
	require.NoError(t, err)
	assert.Empty(t, values)

	reloaded := newLoadedRegistry(t, kv)
	assert.Equal(t, set, reloaded.Snapshot())
}

func TestLoadRepairsMalformedState(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Set(ctx, map[string]any{"webhooksData": map[string]any{
		"webhooks":         "not-a-list",
		"defaultWebhookId": 42,
	}}))

	r := newLoadedRegistry(t, kv)
	set := r.Snapshot()
	assert.Empty(t, set.Webhooks)
	assert.Empty(t, set.DefaultWebhookID)
}

func TestLoadRepairsDanglingDefault(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV(t)
	require.NoError(t, kv.Set(ctx, map[string]any{"webhooksData": map[string]any{
		"webhooks":         []map[string]string{{"id": "w1", "name": "One", "url": "https://one.example.com"}},
		"defaultWebhookId": "gone",
	}}))

	r := newLoadedRegistry(t, kv)
	set := r.Snapshot()
	require.Len(t, set.Webhooks, 1)
	assert.Empty(t, set.DefaultWebhookID, "dangling default pointer is reset")
}

func TestPersistFailureDiscardsMutation(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: newTestKV(t)}
	r := New(kv, logger.NewNop())
	require.NoError(t, r.Load(ctx))

	a, err := r.Add(ctx, "A", "https://a.example.com")
	require.NoError(t, err)
	b, err := r.Add(ctx, "B", "https://b.example.com")
	require.NoError(t, err)
	before := r.Snapshot()

	kv.failSet = true

	_, err = r.Add(ctx, "C", "https://c.example.com")
	assert.Error(t, err)
	assert.Equal(t, before, r.Snapshot(), "failed add leaves state untouched")

	err = r.SetDefault(ctx, b.ID)
	assert.Error(t, err)
	assert.Equal(t, a.ID, r.Snapshot().DefaultWebhookID, "failed default change rolls back")

	err = r.Delete(ctx, a.ID)
	assert.Error(t, err)
	assert.Equal(t, before, r.Snapshot(), "failed delete restores entry and default")
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	r := newLoadedRegistry(t, newTestKV(t))
	_, err := r.Add(ctx, "A", "https://a.example.com")
	require.NoError(t, err)

	snap := r.Snapshot()
	snap.Webhooks[0].Name = "mutated"
	assert.Equal(t, "A", r.Snapshot().Webhooks[0].Name)
}

func TestRepairRawShapes(t *testing.T) {
	// Raw blobs exercised straight through the repair path.
	r := New(newTestKV(t), logger.NewNop())
	for _, raw := range []string{`[]`, `"string"`, `null`, `{"webhooks":null,"defaultWebhookId":null}`} {
		set := r.repair(json.RawMessage(raw))
		assert.NotNil(t, set.Webhooks, "repair always yields a list for %s", raw)
		assert.Empty(t, set.DefaultWebhookID)
	}
}
