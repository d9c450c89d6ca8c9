//go:build redis

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a reachable Redis at REDIS_HOST (default 127.0.0.1:6379).
// Run with: go test -tags=redis ./internal/cache/ -v -count=1

func smokeRedis(t *testing.T) *RedisStorage {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	r, err := OpenRedisStorage(context.Background(), host+":6379", os.Getenv("REDIS_PASS"), 0, time.Minute)
	require.NoError(t, err)
	r.prefix = "floodmap-test:" + t.Name() + ":"
	t.Cleanup(func() {
		_ = r.Delete(context.Background(), DataKey, TimestampKey)
		_ = r.Close()
	})
	return r
}

func TestSmoke_RedisStorage(t *testing.T) {
	r := smokeRedis(t)
	ctx := context.Background()

	_, err := r.Get(ctx, DataKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Set(ctx, DataKey, []byte("payload")))
	got, err := r.Get(ctx, DataKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestSmoke_StoreOverRedis(t *testing.T) {
	store, _, _ := newTestStore(smokeRedis(t))
	ctx := context.Background()
	env := envelope(t, "t1", "a")

	require.Equal(t, PutStored, store.Put(ctx, env))
	entry, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, env, entry.Envelope)
}
