package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the connection surface the store acquires per call.
// *pgxpool.Pool satisfies it in production; tests substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store is the document store: durable placement of rendered bytes
// under a single storage root, metadata rows in PostgreSQL, tags, and
// analytics aggregation. Connections are acquired per call from the
// pool and released on every exit path.
type Store struct {
	pool DB
	root string
	log  *slog.Logger

	now func() time.Time
}

// New creates a Store over an existing pool and storage root.
func New(pool DB, root string, log *slog.Logger) *Store {
	return &Store{
		pool: pool,
		root: root,
		log:  log,
		now:  time.Now,
	}
}

// Connect opens a pgx pool and verifies the database is reachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
