package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the audio_assets table, applied by PostgresStore.Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS audio_assets (
    cache_key    TEXT PRIMARY KEY,
    content_type TEXT NOT NULL DEFAULT 'audio/mpeg',
    audio        BYTEA NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is satisfied by both *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore shares one audio cache between processes.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("audio: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audio_assets WHERE cache_key = $1)`, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("audio: lookup: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := s.db.QueryRow(ctx, `SELECT audio FROM audio_assets WHERE cache_key = $1`, key).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audio: get: %w", err)
	}
	return b, nil
}

// Put is idempotent: a concurrent writer with the same key wins and the
// stored bytes are left untouched.
func (s *PostgresStore) Put(ctx context.Context, key string, audio []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audio_assets (cache_key, audio) VALUES ($1, $2) ON CONFLICT (cache_key) DO NOTHING`,
		key, audio)
	if err != nil {
		return fmt.Errorf("audio: put: %w", err)
	}
	return nil
}
