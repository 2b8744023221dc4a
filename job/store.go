package job

import "context"

// Store defines the persistence contract for jobs. Implementations must
// make every method an individually atomic unit: no other caller may
// observe a partially applied write, and the status/message constraint
// (Message set iff StatusFailed) must hold for every committed row.
//
// Methods return the sentinel errors from the root pgqueue package:
// ErrEmpty, ErrJobNotFound, ErrInvalidTransition, ErrConstraintViolation.
// Any other error is a storage fault.
type Store interface {
	// EnqueueJob persists a new job in ready status, assigns the next ID
	// from the store's sequence, and fills in j.ID, j.CreatedAt and
	// j.UpdatedAt.
	EnqueueJob(ctx context.Context, j *Job) error

	// ClaimNextJob atomically selects the oldest ready job (smallest ID)
	// and transitions it to in-progress. No two concurrent callers ever
	// receive the same job. Returns ErrEmpty when no job is ready; a lost
	// claim race is retried internally, never surfaced.
	ClaimNextJob(ctx context.Context) (*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id int64) (*Job, error)

	// UpdateJob transitions a job from one status to another, replacing
	// its message, conditional on the job currently having status from.
	// Returns ErrJobNotFound if no such job exists, ErrInvalidTransition
	// if the job exists with a different status, and
	// ErrConstraintViolation if the (to, message) pair would break the
	// status/message constraint.
	UpdateJob(ctx context.Context, id int64, from, to Status, message string) error

	// DeleteJob removes a job permanently, conditional on the job
	// currently having status from. Same error contract as UpdateJob.
	DeleteJob(ctx context.Context, id int64, from Status) error
}
