package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis so lockouts hold across instances.
// Per-key atomicity comes from Redis itself: INCR for the window counter,
// key TTLs for window and lock expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) failKey(key string) string { return "ratelimit:fail:" + key }
func (s *RedisStore) lockKey(key string) string { return "ratelimit:lock:" + key }

// Fail implements Store. The first failure creates the key and starts the
// window via TTL.
func (s *RedisStore) Fail(ctx context.Context, key string, window time.Duration) (int64, error) {
	fk := s.failKey(key)
	count, err := s.client.Incr(ctx, fk).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, fk, window).Err(); err != nil {
			return count, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	return count, nil
}

// Lock implements Store. The failure window is cleared here so the first
// attempt after the lock expires is evaluated fresh, not auto-locked.
func (s *RedisStore) Lock(ctx context.Context, key string, d time.Duration) error {
	if err := s.client.Set(ctx, s.lockKey(key), "1", d).Err(); err != nil {
		return err
	}
	return s.client.Del(ctx, s.failKey(key)).Err()
}

// Locked implements Store. Redis expires the lock key server-side, so an
// elapsed lock simply reports absent.
func (s *RedisStore) Locked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.lockKey(key)).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		return ttl, nil
	}
	return 0, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.failKey(key), s.lockKey(key)).Err()
}

var _ Store = (*RedisStore)(nil)
