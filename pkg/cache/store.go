package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the pluggable backing KV for a named cache. Implementations keep
// the raw envelope bytes; freshness policy lives in Cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value. A zero ttl means "expire never, invalidate
	// explicitly".
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every key matching the glob pattern within this
	// store's namespace.
	Invalidate(ctx context.Context, pattern string) error
}

// envelope wraps every cached value with its creation time so staleness can
// be judged independent of the backing store's expiry.
type envelope struct {
	Value    json.RawMessage `json:"v"`
	StoredAt int64           `json:"at"`
}

func packEnvelope(value any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Value: raw, StoredAt: now.UnixNano()})
}

func unpackEnvelope(data []byte) (json.RawMessage, time.Time, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, err
	}
	return env.Value, time.Unix(0, env.StoredAt), nil
}
