// Package registry maintains the named webhook endpoints, the default
// selection, and resolution of "which URL does this send go to".
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

const (
	keyWebhooks  = "webhooksData"
	keyLegacyURL = "webhookUrl"

	legacyWebhookName = "Default Webhook"
)

var (
	// ErrNoWebhook means nothing is configured; a send must not be attempted.
	ErrNoWebhook = errors.New("no webhook available")

	// ErrNotFound means the referenced webhook id is not in the registry.
	ErrNotFound = errors.New("webhook not found")

	// ErrInvalid wraps validation failures on add.
	ErrInvalid = errors.New("invalid webhook")
)

// Source says how the target webhook was chosen.
type Source string

const (
	SourceOverride Source = "override"
	SourceDefault  Source = "default"
	// SourceFallback is the degraded first-entry choice used when no default
	// is set; the UI should warn about it.
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of ResolveForSend. OverrideCleared reports that a
// stale override id was detected and must be dropped by the session.
type Resolution struct {
	Webhook         model.Webhook
	Source          Source
	OverrideCleared bool
}

// Registry holds the webhook set and persists it to the local device store
// after every mutation, regardless of the conversation storage mode.
type Registry struct {
	kv  storage.KV
	log *logger.Logger

	mu  sync.Mutex
	set model.WebhookSet
}

// New creates a registry backed by the given store. Call Load before use.
func New(kv storage.KV, log *logger.Logger) *Registry {
	return &Registry{
		kv:  kv,
		log: log.WithComponent("registry"),
	}
}

// Load reads the persisted registry. A missing registry is migrated from the
// legacy single-URL setting when one exists, otherwise initialized empty.
// Structural damage is repaired in place (log + reset field), never surfaced
// as an error to the caller.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.kv.Get(ctx, keyWebhooks, keyLegacyURL)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	if raw, ok := values[keyWebhooks]; ok {
		r.set = r.repair(raw)
		return nil
	}

	if rawURL, ok := values[keyLegacyURL]; ok {
		var legacyURL string
		if err := json.Unmarshal(rawURL, &legacyURL); err == nil && legacyURL != "" {
			return r.migrateLegacy(ctx, legacyURL)
		}
	}

	r.set = model.WebhookSet{Webhooks: []model.Webhook{}}
	if err := r.kv.Set(ctx, map[string]any{keyWebhooks: r.set}); err != nil {
		return fmt.Errorf("persist fresh registry: %w", err)
	}
	return nil
}

// migrateLegacy turns the old single webhookUrl setting into a one-entry
// registry with that entry as default, then deletes the legacy key.
func (r *Registry) migrateLegacy(ctx context.Context, legacyURL string) error {
	id := newID()
	r.set = model.WebhookSet{
		Webhooks: []model.Webhook{{
			ID:   id,
			Name: legacyWebhookName,
			URL:  legacyURL,
		}},
		DefaultWebhookID: id,
	}
	if err := r.kv.Set(ctx, map[string]any{keyWebhooks: r.set}); err != nil {
		return fmt.Errorf("persist migrated registry: %w", err)
	}
	if err := r.kv.Remove(ctx, keyLegacyURL); err != nil {
		r.log.Warn("could not remove legacy webhookUrl key", zap.Error(err))
	}
	r.log.Info("migrated legacy webhook URL into registry", zap.String("webhook_id", id))
	return nil
}

// repair validates the persisted shape field by field, resetting whatever is
// malformed to a safe default.
func (r *Registry) repair(raw json.RawMessage) model.WebhookSet {
	var loose struct {
		Webhooks         json.RawMessage `json:"webhooks"`
		DefaultWebhookID json.RawMessage `json:"defaultWebhookId"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		r.log.Warn("persisted registry is not an object, reinitializing", zap.Error(err))
		return model.WebhookSet{Webhooks: []model.Webhook{}}
	}

	set := model.WebhookSet{Webhooks: []model.Webhook{}}

	if len(loose.Webhooks) > 0 {
		var webhooks []model.Webhook
		if err := json.Unmarshal(loose.Webhooks, &webhooks); err != nil {
			r.log.Warn("webhooks field is not a list, resetting", zap.Error(err))
		} else if webhooks != nil {
			set.Webhooks = webhooks
		}
	}

	if len(loose.DefaultWebhookID) > 0 && string(loose.DefaultWebhookID) != "null" {
		var id string
		if err := json.Unmarshal(loose.DefaultWebhookID, &id); err != nil {
			r.log.Warn("defaultWebhookId is not a string, resetting", zap.Error(err))
		} else {
			set.DefaultWebhookID = id
		}
	}

	if set.DefaultWebhookID != "" {
		if _, ok := set.Find(set.DefaultWebhookID); !ok {
			r.log.Warn("default webhook id does not exist in list, resetting",
				zap.String("default_id", set.DefaultWebhookID))
			set.DefaultWebhookID = ""
		}
	}
	return set
}

// Snapshot returns a copy of the current registry state.
func (r *Registry) Snapshot() model.WebhookSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Clone()
}

// commit persists the staged set and only then makes it the live state, so a
// failed write discards the staged change instead of needing a rollback.
func (r *Registry) commit(ctx context.Context, staged model.WebhookSet) error {
	if err := r.kv.Set(ctx, map[string]any{keyWebhooks: staged}); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}
	r.set = staged
	return nil
}

// Add registers a new webhook. The first webhook added, or any webhook added
// while no default is set, becomes the default.
func (r *Registry) Add(ctx context.Context, name, rawURL string) (model.Webhook, error) {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)
	if name == "" {
		return model.Webhook{}, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
	}
	if rawURL == "" {
		return model.Webhook{}, fmt.Errorf("%w: url cannot be empty", ErrInvalid)
	}
	if parsed, err := url.Parse(rawURL); err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return model.Webhook{}, fmt.Errorf("%w: url must be absolute", ErrInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wh := model.Webhook{ID: newID(), Name: name, URL: rawURL}
	staged := r.set.Clone()
	staged.Webhooks = append(staged.Webhooks, wh)
	if staged.DefaultWebhookID == "" {
		staged.DefaultWebhookID = wh.ID
	}

	if err := r.commit(ctx, staged); err != nil {
		r.log.Error("webhook add discarded, persistence failed", zap.Error(err))
		return model.Webhook{}, err
	}
	r.log.Info("webhook added", zap.String("webhook_id", wh.ID), zap.String("name", wh.Name))
	return wh, nil
}

// SetDefault marks the given webhook as the registry default.
func (r *Registry) SetDefault(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set.Find(id); !ok {
		return ErrNotFound
	}

	staged := r.set.Clone()
	staged.DefaultWebhookID = id
	if err := r.commit(ctx, staged); err != nil {
		r.log.Error("default change discarded, persistence failed", zap.Error(err))
		return err
	}
	return nil
}

// Delete removes the webhook. When the default is deleted, the new default is
// the first remaining entry, or unset when none remain.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set.Find(id); !ok {
		return ErrNotFound
	}

	staged := r.set.Clone()
	kept := staged.Webhooks[:0]
	for _, wh := range staged.Webhooks {
		if wh.ID != id {
			kept = append(kept, wh)
		}
	}
	staged.Webhooks = kept

	if staged.DefaultWebhookID == id {
		if len(staged.Webhooks) > 0 {
			staged.DefaultWebhookID = staged.Webhooks[0].ID
		} else {
			staged.DefaultWebhookID = ""
		}
	}

	if err := r.commit(ctx, staged); err != nil {
		r.log.Error("webhook delete discarded, persistence failed", zap.Error(err))
		return err
	}
	r.log.Info("webhook deleted", zap.String("webhook_id", id))
	return nil
}

// ResolveForSend picks the target webhook for one send: a valid session
// override wins, then the registry default, then the first entry as a
// degraded fallback. A stale override is reported through OverrideCleared so
// the session drops it; with nothing configured ErrNoWebhook is returned and
// the send must not go out.
func (r *Registry) ResolveForSend(overrideID string) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := Resolution{}

	if overrideID != "" {
		if wh, ok := r.set.Find(overrideID); ok {
			res.Webhook = wh
			res.Source = SourceOverride
			return res, nil
		}
		r.log.Warn("override references a deleted webhook, clearing it",
			zap.String("override_id", overrideID))
		res.OverrideCleared = true
	}

	if r.set.DefaultWebhookID != "" {
		if wh, ok := r.set.Find(r.set.DefaultWebhookID); ok {
			res.Webhook = wh
			res.Source = SourceDefault
			return res, nil
		}
	}

	if len(r.set.Webhooks) > 0 {
		res.Webhook = r.set.Webhooks[0]
		res.Source = SourceFallback
		return res, nil
	}

	return res, ErrNoWebhook
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
