package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/unionlabs/pg-queue/backoff"
	"github.com/unionlabs/pg-queue/store"
)

// Ensure Store implements the full store contract at compile time.
var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS queue (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    status     TEXT NOT NULL DEFAULT 'ready'
               CHECK (status IN ('ready', 'in-progress', 'failed')),
    item       TEXT NOT NULL,
    message    TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,

    CHECK ((status = 'failed') = (message IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS queue_ready_idx ON queue (id) WHERE status = 'ready';
`

// Store is a SQLite implementation of store.Store using database/sql
// and mattn/go-sqlite3.
type Store struct {
	db            *sql.DB
	logger        *slog.Logger
	claimAttempts int
	claimBackoff  backoff.Strategy
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClaimAttempts bounds how many times a claim retries after losing
// the compare-and-swap race before giving up and reporting no ready jobs.
func WithClaimAttempts(n int) Option {
	return func(s *Store) { s.claimAttempts = n }
}

// WithClaimBackoff sets the delay strategy between claim retries.
func WithClaimBackoff(strategy backoff.Strategy) Option {
	return func(s *Store) { s.claimBackoff = strategy }
}

// Open creates a new SQLite store at the given path. The connection is
// serialized through a busy timeout so concurrent writers queue instead
// of failing immediately with SQLITE_BUSY.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("pgqueue/sqlite: open %s: %w", path, err)
	}

	s := &Store{
		db:            db,
		logger:        slog.Default(),
		claimAttempts: 8,
		claimBackoff:  backoff.DefaultClaim(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromDB creates a Store from an existing database handle. The caller
// owns the handle's lifecycle; Close is then a no-op on the handle.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:            db,
		logger:        slog.Default(),
		claimAttempts: 8,
		claimBackoff:  backoff.DefaultClaim(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("pgqueue/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ── helpers ──────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isConstraintViolation checks if a SQLite error is a CHECK constraint
// failure.
func isConstraintViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
