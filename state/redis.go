package state

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by one Redis hash per session, for deployments
// where session state must survive a process restart. Values are JSON
// encoded.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL sets an expiry on the session hash, refreshed on every write.
// Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// NewRedis returns a store persisting under "lotus:session:<id>".
func NewRedis(client *redis.Client, sessionID string, options ...RedisOption) *Redis {
	store := &Redis{
		client: client,
		key:    "lotus:session:" + sessionID,
	}
	for _, opt := range options {
		opt(store)
	}
	return store
}

func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state get %q: %w", key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, fmt.Errorf("state decode %q: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state encode %q: %w", key, err)
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.key, key, string(raw))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Snapshot(ctx context.Context) (map[string]any, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("state snapshot: %w", err)
	}
	snapshot := make(map[string]any, len(raw))
	for key, enc := range raw {
		var value any
		if err := json.Unmarshal([]byte(enc), &value); err != nil {
			return nil, fmt.Errorf("state decode %q: %w", key, err)
		}
		snapshot[key] = value
	}
	return snapshot, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
