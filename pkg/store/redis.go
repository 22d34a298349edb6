package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores one scope as a Redis hash, so a second device pointed at the
// same server sees the same settings.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to redisURL and binds the store to prefix:scope.
func NewRedis(ctx context.Context, redisURL, prefix string, scope Scope) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 4
	opt.MinIdleConns = 1
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client, key: hashKey(prefix, scope)}, nil
}

func hashKey(prefix string, scope Scope) string {
	if prefix == "" {
		return string(scope)
	}
	return prefix + ":" + string(scope)
}

func (r *Redis) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.client.HMGet(ctx, r.key, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = json.RawMessage(s)
		}
	}
	return out, nil
}

// Set writes all items with a single HSET, which Redis applies atomically.
func (r *Redis) Set(ctx context.Context, items map[string]any) error {
	if len(items) == 0 {
		return nil
	}
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, encoded).Err(); err != nil {
		return fmt.Errorf("failed to write keys: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove keys: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
