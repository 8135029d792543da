package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps dedup records in Redis so all workers share them.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Exists reports whether the key is present and not expired.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Mark stores the key with a TTL. An existing record keeps its expiry.
func (s *RedisStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.SetNX(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark %s: %w", key, err)
	}
	return nil
}

// Remove deletes the key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup remove %s: %w", key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
