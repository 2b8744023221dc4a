package job

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusReady means the job is waiting to be claimed by a worker.
	StatusReady Status = "ready"
	// StatusInProgress means exactly one worker has claimed the job.
	StatusInProgress Status = "in-progress"
	// StatusFailed means the job failed permanently and will never run again.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReady, StatusInProgress, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status. Successful completion
// has no status of its own: completed jobs are deleted from the store.
func (s Status) Terminal() bool {
	return s == StatusFailed
}

// Job is one unit of work. The store assigns IDs from a strictly
// increasing sequence; an ID is never reused. Item is opaque to the
// queue and immutable once enqueued. Message is set if and only if
// the job is failed.
type Job struct {
	ID        int64           `json:"id"`
	Status    Status          `json:"status"`
	Item      json.RawMessage `json:"item"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
