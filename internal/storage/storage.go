// Package storage provides the key-value persistence abstraction used for the
// webhook registry, session keys and local-mode conversation blobs.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// KV is an asynchronous key-value store. Each call completes or fails
// atomically; no partial multi-key write is ever observable.
type KV interface {
	// Get returns the values for the given keys. Absent keys are simply
	// missing from the result map.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set writes all entries atomically. Values are JSON-encoded.
	Set(ctx context.Context, entries map[string]any) error

	// Remove deletes the given keys atomically. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// GetJSON reads a single key and unmarshals it into dst. It reports whether
// the key was present.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	values, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}
