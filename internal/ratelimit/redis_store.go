package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis for deployments running more than one
// service instance. Keys expire two windows after their last write so stale
// clients clean themselves up.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

func (r *RedisStore) key(key string) string { return "rate:" + key }

func (r *RedisStore) Get(ctx context.Context, key string) (*Counter, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var c Counter
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, nil
	}
	return &c, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, c *Counter) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal counter: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), raw, 2*r.window).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
