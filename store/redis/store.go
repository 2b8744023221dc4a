// Package redis implements store.Store using Redis. Jobs are stored as
// Hashes; the ready set is a Sorted Set scored by job ID, so ZPOPMIN is
// the atomic oldest-first claim. Conditional status transitions use
// WATCH-based optimistic transactions with a bounded retry loop.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unionlabs/pg-queue/backoff"
	"github.com/unionlabs/pg-queue/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithCASAttempts bounds how many times a conditional write retries
// after a WATCH conflict.
func WithCASAttempts(n int) Option {
	return func(s *Store) { s.casAttempts = n }
}

// WithCASBackoff sets the delay strategy between WATCH-conflict retries.
func WithCASBackoff(strategy backoff.Strategy) Option {
	return func(s *Store) { s.casBackoff = strategy }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client      goredis.UniversalClient
	logger      *slog.Logger
	casAttempts int
	casBackoff  backoff.Strategy
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:      client,
		logger:      slog.Default(),
		casAttempts: 8,
		casBackoff:  backoff.DefaultClaim(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
