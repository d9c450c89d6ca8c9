package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps cache entries in Redis. Keys expire after ttl so a
// stopped process does not leave stale payloads behind.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage wraps an existing client. Keys are namespaced by prefix.
func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedisStorage dials addr and verifies the connection with PING.
func OpenRedisStorage(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStorage(client, "floodmap:", ttl), nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
	if err != nil && strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
