package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Counter = (*RedisCounter)(nil)

// RedisCounter implements Counter with INCR + EXPIRE, the same pattern the
// realtime gateway uses for its per-identity windows. INCR is atomic on the
// server, so concurrent callers across processes cannot lose increments.
type RedisCounter struct {
	client redis.UniversalClient
}

// NewRedisCounter wraps a Redis client as a windowed counter.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// IncrWindow increments key and sets its expiry on the first hit of the
// window. A failed EXPIRE is tolerated: the count still stands and the key
// is rewritten next window anyway.
func (c *RedisCounter) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = c.client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
