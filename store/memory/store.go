package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
	"github.com/unionlabs/pg-queue/store"
)

// Ensure Store implements the full store contract at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
// The mutex makes each operation a single atomic unit, which is the
// in-process equivalent of the conditional updates the durable backends
// rely on.
type Store struct {
	mu     sync.RWMutex
	jobs   map[int64]*job.Job
	nextID int64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[int64]*job.Job),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new job in ready status and assigns the next ID.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := pgqueue.ValidateRecord(j.Status, j.Message); err != nil {
		return err
	}

	m.nextID++
	now := time.Now().UTC()

	j.ID = m.nextID
	j.CreatedAt = now
	j.UpdatedAt = now

	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

// ClaimNextJob selects the oldest ready job and marks it in-progress.
// The whole select-and-mark runs under the write lock, so no two callers
// can win the same job.
func (m *Store) ClaimNextJob(_ context.Context) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *job.Job
	for _, j := range m.jobs {
		if j.Status != job.StatusReady {
			continue
		}
		if oldest == nil || j.ID < oldest.ID {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, pgqueue.ErrEmpty
	}

	oldest.Status = job.StatusInProgress
	oldest.UpdatedAt = time.Now().UTC()

	// Return a copy so callers can mutate without racing with the store.
	cp := *oldest
	return &cp, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, id int64) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, pgqueue.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob transitions a job conditional on its current status.
func (m *Store) UpdateJob(_ context.Context, id int64, from, to job.Status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return pgqueue.ErrJobNotFound
	}
	if j.Status != from {
		return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, j.Status, from)
	}
	if err := pgqueue.ValidateRecord(to, message); err != nil {
		return err
	}

	j.Status = to
	j.Message = message
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteJob removes a job conditional on its current status.
func (m *Store) DeleteJob(_ context.Context, id int64, from job.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return pgqueue.ErrJobNotFound
	}
	if j.Status != from {
		return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, j.Status, from)
	}

	delete(m.jobs, id)
	return nil
}
