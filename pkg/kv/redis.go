package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis-compatible server, mirroring
// the redis/go-redis pairing the pack uses for shared coordination state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client. Callers construct the client
// (redis.NewClient for production, or one pointed at a miniredis instance
// in tests) so this package stays agnostic of connection details such as
// TLS or cluster topology.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return v, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// CreateIfAbsent implements Store using SET NX, which Redis guarantees is
// atomic regardless of client concurrency or replica topology.
func (s *RedisStore) CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("kv: setnx %q: %w", key, err)
	}
	if !ok {
		return ErrNotAcquired
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: del %q: %w", key, err)
	}
	return nil
}

// IncrementWithTTL implements Store. The TTL is applied only on the
// increment that creates the key (post-increment value of 1), so a
// fixed window starts on first use and rolls over implicitly when the
// key expires, per spec §3's rate-limit bucket.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incr %q: %w", key, err)
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("kv: expire %q: %w", key, err)
		}
	}
	return n, nil
}
