package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// SQLiteBackend persists session keys in a single kv table. It is the
// default on-device store.
type SQLiteBackend struct {
	db        *sql.DB
	profile   string
	writeLock sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend takes an open *sql.DB (see db.OpenSQLite) and creates the
// schema if needed.
func NewSQLiteBackend(ctx context.Context, db *sql.DB, profile string) (*SQLiteBackend, error) {
	if profile == "" {
		profile = "default"
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_kv (
			profile    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			PRIMARY KEY (profile, key)
		)`); err != nil {
		return nil, fmt.Errorf("create session_kv: %w", err)
	}
	return &SQLiteBackend{db: db, profile: profile}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_kv WHERE profile = ? AND key = ?`, s.profile, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_kv (profile, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%s','now'))
		ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.profile, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_kv WHERE profile = ? AND key = ?`, s.profile, key,
	); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
