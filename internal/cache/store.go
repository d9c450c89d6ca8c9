// Package cache keeps the last successful feed payload so a reload within
// the freshness window can skip the network. Every failure in this package is
// absorbed: the cache never blocks or fails the data path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
)

// Storage keys for the serialized envelope and its write time (unix millis).
const (
	DataKey      = "flood_data_cache"
	TimestampKey = "flood_data_timestamp"
)

const (
	// MaxEntryBytes is the largest serialized envelope that will be stored.
	MaxEntryBytes = 4 << 20
	// RetryCeilingBytes bounds the retry after a quota failure: larger
	// payloads are unlikely to fit even in an emptied store.
	RetryCeilingBytes = 2 << 20
	// FreshnessWindow is how long an entry is served after it was written.
	FreshnessWindow = 5 * time.Minute
)

// PutResult describes what Put did with an envelope.
type PutResult int

const (
	PutStored PutResult = iota
	PutStoredAfterClear
	PutSkippedTooLarge
	PutFailed
)

func (r PutResult) String() string {
	switch r {
	case PutStored:
		return "stored"
	case PutStoredAfterClear:
		return "retried"
	case PutSkippedTooLarge:
		return "skipped"
	default:
		return "failed"
	}
}

// Entry is a cached envelope and how old it is.
type Entry struct {
	Envelope  domain.Envelope
	WrittenAt time.Time
	Age       time.Duration
}

// Info describes the stored entry without decoding it.
type Info struct {
	SizeBytes int           `json:"size_bytes"`
	WrittenAt time.Time     `json:"written_at"`
	Age       time.Duration `json:"age"`
	Fresh     bool          `json:"fresh"`
}

// Store applies the size, age and quota policy on top of a Storage.
type Store struct {
	storage Storage
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a Store over storage.
func NewStore(storage Storage, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{storage: storage, clock: clock, logger: logger, metrics: metrics}
}

// Get returns the cached envelope if one is present and younger than
// FreshnessWindow.
func (s *Store) Get(ctx context.Context) (Entry, bool) {
	data, written, ok := s.read(ctx)
	if !ok {
		s.metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return Entry{}, false
	}

	age := s.age(written)
	if age >= FreshnessWindow {
		s.metrics.CacheOps.WithLabelValues("get", "expired").Inc()
		return Entry{}, false
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("cached envelope unreadable", "error", err)
		s.metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return Entry{}, false
	}

	s.metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return Entry{Envelope: env, WrittenAt: written, Age: age}, true
}

// Put stores env unless it is too large. A quota failure clears the cache
// and retries once for payloads under RetryCeilingBytes.
func (s *Store) Put(ctx context.Context, env domain.Envelope) PutResult {
	result := s.put(ctx, env)
	s.metrics.CacheOps.WithLabelValues("put", result.String()).Inc()
	return result
}

func (s *Store) put(ctx context.Context, env domain.Envelope) PutResult {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Warn("serialize envelope for cache failed", "error", err)
		return PutFailed
	}

	if len(data) > MaxEntryBytes {
		s.logger.Warn("feed payload too large to cache", "size_bytes", len(data), "limit_bytes", MaxEntryBytes)
		s.Clear(ctx)
		return PutSkippedTooLarge
	}

	err = s.write(ctx, data)
	if err == nil {
		return PutStored
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		s.logger.Warn("cache write failed", "error", err)
		return PutFailed
	}

	s.logger.Warn("cache quota exceeded, clearing", "size_bytes", len(data))
	s.Clear(ctx)
	if len(data) >= RetryCeilingBytes {
		return PutFailed
	}
	if err := s.write(ctx, data); err != nil {
		s.logger.Warn("cache write failed after clearing", "error", err)
		s.Clear(ctx)
		return PutFailed
	}
	return PutStoredAfterClear
}

// Clear removes the cached entry.
func (s *Store) Clear(ctx context.Context) {
	if err := s.storage.Delete(ctx, DataKey, TimestampKey); err != nil {
		s.logger.Warn("cache clear failed", "error", err)
		return
	}
	s.metrics.CacheOps.WithLabelValues("clear", "cleared").Inc()
}

// Info reports the size and age of the stored entry.
func (s *Store) Info(ctx context.Context) (Info, bool) {
	data, written, ok := s.read(ctx)
	if !ok {
		return Info{}, false
	}
	age := s.age(written)
	return Info{SizeBytes: len(data), WrittenAt: written, Age: age, Fresh: age < FreshnessWindow}, true
}

func (s *Store) write(ctx context.Context, data []byte) error {
	if err := s.storage.Set(ctx, DataKey, data); err != nil {
		return err
	}
	stamp := strconv.FormatInt(s.clock.Now().UnixMilli(), 10)
	if err := s.storage.Set(ctx, TimestampKey, []byte(stamp)); err != nil {
		// The payload must not outlive a failed stamp next to an older one.
		if derr := s.storage.Delete(ctx, DataKey); derr != nil {
			s.logger.Warn("cache payload cleanup failed", "error", derr)
		}
		return err
	}
	return nil
}

func (s *Store) read(ctx context.Context) ([]byte, time.Time, bool) {
	data, err := s.storage.Get(ctx, DataKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("cache read failed", "error", err)
		}
		return nil, time.Time{}, false
	}
	stamp, err := s.storage.Get(ctx, TimestampKey)
	if err != nil {
		return nil, time.Time{}, false
	}
	ms, err := strconv.ParseInt(string(stamp), 10, 64)
	if err != nil {
		s.logger.Warn("cache timestamp unreadable", "value", string(stamp))
		return nil, time.Time{}, false
	}
	return data, time.UnixMilli(ms), true
}

func (s *Store) age(written time.Time) time.Duration {
	age := s.clock.Since(written)
	if age < 0 {
		return 0
	}
	return age
}
