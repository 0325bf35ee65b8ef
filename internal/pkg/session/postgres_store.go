package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresBackend stores session keys for headless deployments where several
// client profiles share one database.
type PostgresBackend struct {
	pool    *pgxpool.Pool
	profile string
}

var (
	_ Backend     = (*PostgresBackend)(nil)
	_ BulkDeleter = (*PostgresBackend)(nil)
)

func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool, profile string) (*PostgresBackend, error) {
	if profile == "" {
		profile = "default"
	}
	query := `
		CREATE TABLE IF NOT EXISTS pipx_session_kv (
			profile    TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (profile, key)
		)
	`
	if _, err := pool.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create pipx_session_kv: %w", err)
	}
	return &PostgresBackend{pool: pool, profile: profile}, nil
}

func (p *PostgresBackend) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM pipx_session_kv WHERE profile = $1 AND key = $2`

	var v string
	err := p.pool.QueryRow(ctx, query, p.profile, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO pipx_session_kv (profile, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := p.pool.Exec(ctx, query, p.profile, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	return p.DeleteMany(ctx, []string{key})
}

func (p *PostgresBackend) DeleteMany(ctx context.Context, keys []string) error {
	query := `DELETE FROM pipx_session_kv WHERE profile = $1 AND key = ANY($2)`
	if _, err := p.pool.Exec(ctx, query, p.profile, pq.Array(keys)); err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
