package pgqueue

import (
	"context"

	"github.com/unionlabs/pg-queue/job"
)

// Flow directs how Process resolves a claimed job.
type Flow struct {
	kind    flowKind
	message string
}

type flowKind int

const (
	flowSuccess flowKind = iota
	flowRequeue
	flowFail
)

// Success resolves the job as completed: it is deleted from the store.
func Success() Flow { return Flow{kind: flowSuccess} }

// Requeue returns the job to ready so another worker can claim it.
func Requeue() Flow { return Flow{kind: flowRequeue} }

// Fail marks the job permanently failed with the given message.
// The message must be non-empty.
func Fail(message string) Flow { return Flow{kind: flowFail, message: message} }

// ProcessFunc handles one claimed job. The returned Flow decides the
// job's fate; returning an error requeues the job and propagates the
// error to the Process caller. The handler is responsible for recording
// any retry metadata inside the item payload if it wants to fail
// permanently after a retry budget.
type ProcessFunc func(ctx context.Context, j *job.Job) (Flow, error)
