package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store wraps the Redis operations the campaign API needs.
// A nil *Store is valid and behaves as an always-miss cache that never marks.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// NewStore creates a Store whose keys are namespaced by prefix
func NewStore(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// TryMarkOnce sets key if absent and reports whether this call set it
func (s *Store) TryMarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s == nil || s.rdb == nil {
		return true, nil
	}
	ok, err := s.rdb.SetNX(ctx, s.key("once", key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set marker: %w", err)
	}
	return ok, nil
}

// Unmark releases a marker set by TryMarkOnce
func (s *Store) Unmark(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.key("once", key)).Err()
}

// Get returns the cached bytes for key; found is false on a miss
func (s *Store) Get(ctx context.Context, key string) (data []byte, found bool, err error) {
	if s == nil || s.rdb == nil {
		return nil, false, nil
	}
	data, err = s.rdb.Get(ctx, s.key("kv", key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return data, true, nil
}

// Set stores value under key for ttl
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	if err := s.rdb.Set(ctx, s.key("kv", key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}
