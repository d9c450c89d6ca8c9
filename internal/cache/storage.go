package cache

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Storage.Get for an absent key.
	ErrNotFound = errors.New("cache key not found")
	// ErrQuotaExceeded is returned by Storage.Set when the backend is full.
	ErrQuotaExceeded = errors.New("cache quota exceeded")
)

// Storage is the persistent key/value backend behind the Store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}
