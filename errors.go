package pgqueue

import "errors"

var (
	// ErrEmpty is returned by claim operations when no job is ready.
	// Like io.EOF it marks an expected condition, not a fault: callers
	// poll again later rather than treating it as an error.
	ErrEmpty = errors.New("pgqueue: no ready jobs")

	// ErrJobNotFound means the operation referenced a job ID that does
	// not exist (possibly because the job completed and was deleted).
	ErrJobNotFound = errors.New("pgqueue: job not found")

	// ErrInvalidTransition means the requested status change is not legal
	// from the job's current status.
	ErrInvalidTransition = errors.New("pgqueue: invalid status transition")

	// ErrConstraintViolation means the write would break the standing
	// constraint that a message is present if and only if the job is
	// failed. It indicates a caller bug and is never retried.
	ErrConstraintViolation = errors.New("pgqueue: status/message constraint violated")
)

// IsStorageFault reports whether err represents a backend failure (store
// unavailable, transaction aborted) rather than one of the domain error
// kinds above. Storage faults may be retried by the caller; note that
// retrying Enqueue creates a duplicate job.
func IsStorageFault(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrEmpty),
		errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConstraintViolation):
		return false
	}
	return true
}
