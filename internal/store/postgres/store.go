// Package postgres implements the blob store on a Postgres table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS chanwatch_blobs (
		name TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	selectSQL = `SELECT name, data FROM chanwatch_blobs WHERE name = ANY($1)`
	upsertSQL = `INSERT INTO chanwatch_blobs (name, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists blobs in the chanwatch_blobs table.
type Store struct {
	db DB
}

// New connects a pool and ensures the table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{db: pool}
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure blobs table: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection, used by tests with pgxmock.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Load reads the requested blobs.
func (s *Store) Load(ctx context.Context, keys []string) (map[string][]byte, error) {
	rows, err := s.db.Query(ctx, selectSQL, keys)
	if err != nil {
		return nil, fmt.Errorf("query blobs: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("scan blob row: %w", err)
		}
		out[name] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blob rows: %w", err)
	}
	return out, nil
}

// Save upserts all blobs inside one transaction.
func (s *Store) Save(ctx context.Context, blobs map[string][]byte) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin blob save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for name, data := range blobs {
		if _, err := tx.Exec(ctx, upsertSQL, name, data); err != nil {
			return fmt.Errorf("upsert blob %s: %w", name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit blob save: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.db.Close()
}
