package pgqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unionlabs/pg-queue/job"
)

// Queue is the façade workers use: enqueue, claim, complete, fail,
// requeue. It is a thin composition over a job.Store; every method is
// individually atomic and safe for concurrent use from any number of
// workers sharing the same store.
type Queue struct {
	store  job.Store
	logger *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger for the queue.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// New creates a Queue backed by the given store.
func New(store job.Store, opts ...Option) *Queue {
	q := &Queue{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue serializes item to JSON and inserts it as a new ready job,
// returning the store-assigned ID. The payload is opaque to the queue
// and immutable once enqueued.
//
// Enqueue is not idempotent: retrying after a storage fault may create
// a duplicate job. Callers that retry must dedupe upstream.
func (q *Queue) Enqueue(ctx context.Context, item any) (int64, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("pgqueue: marshal item: %w", err)
	}

	j := &job.Job{
		Status: job.StatusReady,
		Item:   raw,
	}
	if err := q.store.EnqueueJob(ctx, j); err != nil {
		return 0, err
	}

	q.logger.Debug("job enqueued", slog.Int64("id", j.ID))
	return j.ID, nil
}

// Claim atomically transitions the oldest ready job to in-progress and
// returns it. The caller now logically owns the job and must eventually
// call exactly one of Complete, Fail, or Requeue. Returns ErrEmpty when
// no job is ready.
func (q *Queue) Claim(ctx context.Context) (*job.Job, error) {
	j, err := q.store.ClaimNextJob(ctx)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("job claimed", slog.Int64("id", j.ID))
	return j, nil
}

// Get retrieves a job by ID.
func (q *Queue) Get(ctx context.Context, id int64) (*job.Job, error) {
	return q.store.GetJob(ctx, id)
}

// Complete resolves an in-progress job as successfully processed and
// removes it permanently. A second Complete on the same ID returns
// ErrJobNotFound; completing a job that is not in-progress returns
// ErrInvalidTransition.
func (q *Queue) Complete(ctx context.Context, id int64) error {
	if err := q.store.DeleteJob(ctx, id, job.StatusInProgress); err != nil {
		return err
	}

	q.logger.Debug("job completed", slog.Int64("id", id))
	return nil
}

// Fail marks an in-progress job as permanently failed with the given
// message. The message must be non-empty; failed is terminal.
func (q *Queue) Fail(ctx context.Context, id int64, message string) error {
	if err := ValidateTransition(job.StatusInProgress, job.StatusFailed, message); err != nil {
		return err
	}
	if err := q.store.UpdateJob(ctx, id, job.StatusInProgress, job.StatusFailed, message); err != nil {
		return err
	}

	q.logger.Debug("job failed", slog.Int64("id", id), slog.String("message", message))
	return nil
}

// Requeue returns an in-progress job to ready, relinquishing ownership.
// Used to recover jobs whose worker crashed or gave up; the queue itself
// never requeues automatically; staleness detection belongs to an
// external liveness monitor.
func (q *Queue) Requeue(ctx context.Context, id int64) error {
	if err := ValidateTransition(job.StatusInProgress, job.StatusReady, ""); err != nil {
		return err
	}
	if err := q.store.UpdateJob(ctx, id, job.StatusInProgress, job.StatusReady, ""); err != nil {
		return err
	}

	q.logger.Debug("job requeued", slog.Int64("id", id))
	return nil
}

// Process claims the next ready job and hands it to fn. The returned
// Flow resolves the job: Success completes it, Fail marks it failed,
// Requeue returns it to ready. If fn returns an error the job is
// requeued and the error is propagated. Returns ErrEmpty when no job is
// ready.
func (q *Queue) Process(ctx context.Context, fn ProcessFunc) error {
	j, err := q.Claim(ctx)
	if err != nil {
		return err
	}

	flow, err := fn(ctx, j)
	if err != nil {
		if rqErr := q.Requeue(ctx, j.ID); rqErr != nil {
			return errors.Join(err, rqErr)
		}
		return err
	}

	switch flow.kind {
	case flowSuccess:
		return q.Complete(ctx, j.ID)
	case flowFail:
		return q.Fail(ctx, j.ID, flow.message)
	case flowRequeue:
		return q.Requeue(ctx, j.ID)
	default:
		return fmt.Errorf("pgqueue: unknown flow %d", flow.kind)
	}
}
