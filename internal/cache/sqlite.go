package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS cache_entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStorage persists cache entries in a local SQLite file so a restart
// can reuse the last payload within its freshness window.
type SQLiteStorage struct {
	db    *sql.DB
	quota int64
}

// OpenSQLiteStorage opens (creating if needed) the database at path.
// A quota <= 0 means unlimited.
func OpenSQLiteStorage(path string, quota int64) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStorage{db: db, quota: quota}, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.quota > 0 {
		var others int64
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(length(key) + length(value)), 0) FROM cache_entries WHERE key <> ?`, key,
		).Scan(&others)
		if err != nil {
			return fmt.Errorf("measure cache usage: %w", err)
		}
		if others+int64(len(key)+len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, k); err != nil {
			return fmt.Errorf("delete cache entry %s: %w", k, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
