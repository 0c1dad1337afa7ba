package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy.
// This allows Store methods to work with either a connection pool
// or a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists registry snapshots in PostgreSQL
type Store struct {
	pool *pgxpool.Pool
	db   DBTX // The actual executor (pool or transaction)
}

// NewStore creates a Store with a PostgreSQL connection pool and ensures
// the schema exists
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{pool: pool, db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// ensureSchema creates the snapshot tables when missing
func (s *Store) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS services (
			id            TEXT PRIMARY KEY,
			idea          TEXT NOT NULL,
			requester_id  TEXT NOT NULL DEFAULT '',
			metadata      JSONB,
			status        TEXT NOT NULL,
			token_address TEXT NOT NULL DEFAULT '',
			api_base_url  TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS service_events (
			id         BIGSERIAL PRIMARY KEY,
			service_id TEXT NOT NULL,
			status     TEXT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_service_events_service_id
			ON service_events (service_id, id);
		CREATE TABLE IF NOT EXISTS service_api_keys (
			service_id TEXT PRIMARY KEY,
			api_key    TEXT NOT NULL
		);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// WithTx returns a new Store that uses the given transaction
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{pool: s.pool, db: tx}
}

// BeginTx starts a new transaction and returns a Store that uses it.
// The caller is responsible for calling Commit() or Rollback() on the
// transaction.
func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, *Store, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, s.WithTx(tx), nil
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Health checks if the database connection is healthy
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for advanced operations.
// This is primarily intended for testing and cleanup operations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
