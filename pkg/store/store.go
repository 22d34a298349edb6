// Package store provides the two-scope key-value store that holds settings
// and per-campaign bookkeeping.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Scope names a key-value namespace.
type Scope string

const (
	// ScopeLocal holds device-local bookkeeping.
	ScopeLocal Scope = "local"
	// ScopeSynced holds account-synced user settings.
	ScopeSynced Scope = "synced"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is a JSON-valued key-value store for one scope.
//
// Get omits absent keys from the result. Set writes every item in a single
// atomic batch.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, items map[string]any) error
	Remove(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Decode unmarshals values[key] into a T, returning def when the key is absent.
func Decode[T any](values map[string]json.RawMessage, key string, def T) (T, error) {
	raw, ok := values[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return v, nil
}

// encodeItems marshals every value to its JSON text.
func encodeItems(items map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for k, v := range items {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}
