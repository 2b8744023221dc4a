package pgqueue

import (
	"fmt"

	"github.com/unionlabs/pg-queue/job"
)

// ValidateTransition is the single gate that decides whether a job may
// move from one status to another with the given message. It is pure:
// no I/O, no clock, safe for concurrent use.
//
// Legal transitions:
//
//	ready       → in-progress   (claim, message unset)
//	in-progress → failed        (permanent failure, message required)
//	in-progress → ready         (requeue, message unset)
//
// Everything else returns ErrInvalidTransition. A message on a
// non-failed target, or a missing message on a failed target, returns
// ErrConstraintViolation.
func ValidateTransition(from, to job.Status, message string) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}

	switch {
	case from == job.StatusReady && to == job.StatusInProgress:
	case from == job.StatusInProgress && to == job.StatusFailed:
	case from == job.StatusInProgress && to == job.StatusReady:
	default:
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}

	return ValidateRecord(to, message)
}

// ValidateRecord checks the cross-field constraint a committed job row
// must satisfy: message set if and only if status is failed. Backends
// without a native check constraint call this inside the same critical
// section as the write.
func ValidateRecord(status job.Status, message string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrConstraintViolation, status)
	}
	if status == job.StatusFailed && message == "" {
		return fmt.Errorf("%w: failed job requires a message", ErrConstraintViolation)
	}
	if status != job.StatusFailed && message != "" {
		return fmt.Errorf("%w: message set on %q job", ErrConstraintViolation, status)
	}
	return nil
}
