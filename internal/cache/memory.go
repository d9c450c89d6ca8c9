package cache

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process Storage with a byte quota counted over keys
// and values, like browser local storage.
type MemoryStorage struct {
	mu    sync.Mutex
	quota int64
	used  int64
	items map[string][]byte
}

// NewMemoryStorage creates a MemoryStorage. A quota <= 0 means unlimited.
func NewMemoryStorage(quota int64) *MemoryStorage {
	return &MemoryStorage{quota: quota, items: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + int64(len(key)+len(value))
	if old, ok := m.items[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.items[key] = v
	m.used = used
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		if old, ok := m.items[k]; ok {
			m.used -= int64(len(k) + len(old))
			delete(m.items, k)
		}
	}
	return nil
}

// Used returns the bytes currently stored.
func (m *MemoryStorage) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
