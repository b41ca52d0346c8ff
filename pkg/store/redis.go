package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanCount is the COUNT hint for each SCAN page.
const scanCount = 100

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Put implements Store. The ttl is rounded up to whole seconds.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ceilSeconds(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// List implements Store using SCAN, so it never blocks the server the way
// KEYS would.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
