package store

import (
	"context"

	"github.com/unionlabs/pg-queue/job"
)

// Store is the complete backend interface. A backend implements the job
// persistence contract and its own lifecycle.
type Store interface {
	job.Store

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
