package cache

import (
	"context"
	"errors"
	"time"

	redispkg "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

// RedisStore backs a named cache with the shared Redis client so multiple
// instances see the same entries.
type RedisStore struct {
	client    *redispkg.Client
	namespace string
}

// NewRedisStore scopes a Redis-backed store to one cache namespace.
func NewRedisStore(client *redispkg.Client, namespace string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if namespace == "" {
		return nil, errors.New("cache namespace required")
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.client.CacheKey(s.namespace, key))
	if err != nil {
		if errors.Is(err, redispkg.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.client.CacheKey(s.namespace, key), string(value), ttl)
}

func (s *RedisStore) Invalidate(ctx context.Context, pattern string) error {
	keys, err := s.client.ScanKeys(ctx, s.client.CachePattern(s.namespace, pattern))
	if err != nil {
		return err
	}
	return s.client.Del(ctx, keys...)
}
