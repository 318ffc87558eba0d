// Package sqlite contains the SQLite implementation of the key-value store.
//
// The driver is modernc.org/sqlite, a pure-Go port: no CGo, cross-compiles
// cleanly, registers itself under the driver name "sqlite".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scoutpluse/scoutsync/internal/migrate"
)

// KV implements repository.KV on a single kv table.
type KV struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies migrations.
//
// DSN formats:
//   - file:  "scoutsync.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
//   - tests: "file:<name>?mode=memory&cache=shared"
//
// The pool is capped at one connection: writes serialize, and shared-cache
// in-memory databases survive for the lifetime of the handle.
func Open(ctx context.Context, dsn string) (*KV, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &KV{db: db}, nil
}

// Get returns the stored value and whether the key exists.
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT value FROM kv WHERE key=?`
	var v []byte
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Set upserts the value and bumps the modification timestamp.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv (key, value, updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, key, value, time.Now().UnixNano())
	return err
}

// Delete removes the key if present.
func (s *KV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

// ModifiedAt returns the last write time of the key.
func (s *KV) ModifiedAt(ctx context.Context, key string) (time.Time, bool, error) {
	const q = `SELECT updated_at FROM kv WHERE key=?`
	var ns int64
	err := s.db.QueryRowContext(ctx, q, key).Scan(&ns)
	switch {
	case err == nil:
		return time.Unix(0, ns), true, nil
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, err
	}
}

// Close closes the underlying handle.
func (s *KV) Close() error { return s.db.Close() }
