package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
)

// EnqueueJob assigns the next ID from the sequence counter, stores the
// job as a Hash, and adds it to the ready Sorted Set.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	if err := pgqueue.ValidateRecord(j.Status, j.Message); err != nil {
		return err
	}

	id, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("pgqueue/redis: enqueue next id: %w", err)
	}

	now := time.Now().UTC()
	j.ID = id
	j.CreatedAt = now
	j.UpdatedAt = now

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(id), jobToMap(j))
	// Score by ID: ZPOPMIN then hands out the oldest ready job.
	pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pgqueue/redis: enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob pops the smallest ID from the ready set and marks the job
// in-progress. ZPOPMIN is atomic, so no two claimers can pop the same
// member; everything after the pop operates on a job this claimer
// exclusively owns.
func (s *Store) ClaimNextJob(ctx context.Context) (*job.Job, error) {
	members, err := s.client.ZPopMin(ctx, readyKey, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("pgqueue/redis: claim zpopmin: %w", err)
	}
	if len(members) == 0 {
		return nil, pgqueue.ErrEmpty
	}

	idStr, ok := members[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("pgqueue/redis: claim: unexpected member %T", members[0].Member)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pgqueue/redis: claim: parse id %q: %w", idStr, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, jobKey(id),
		"status", string(job.StatusInProgress),
		"updated_at", now,
	).Err(); err != nil {
		return nil, fmt.Errorf("pgqueue/redis: claim update: %w", err)
	}

	return s.GetJob(ctx, id)
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id int64) (*job.Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("pgqueue/redis: get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, pgqueue.ErrJobNotFound
	}
	return jobFromMap(id, fields)
}

// UpdateJob transitions a job conditional on its current status, using
// WATCH so the status check and the write commit as one optimistic
// transaction. A conflicting concurrent write aborts the transaction and
// the loop retries within the configured bound.
func (s *Store) UpdateJob(ctx context.Context, id int64, from, to job.Status, message string) error {
	if err := pgqueue.ValidateRecord(to, message); err != nil {
		return err
	}

	key := jobKey(id)
	txn := func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, key, "status").Result()
		if errors.Is(err, goredis.Nil) {
			return pgqueue.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("pgqueue/redis: update read status: %w", err)
		}
		if job.Status(current) != from {
			return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, current, from)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, "status", string(to), "message", message, "updated_at", now)
			if to == job.StatusReady {
				// Requeue: the job re-enters the ready set at its
				// original position (score = id).
				pipe.ZAdd(ctx, readyKey, goredis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
			}
			return nil
		})
		return err
	}

	return s.withCAS(ctx, func() error { return s.client.Watch(ctx, txn, key) })
}

// DeleteJob removes a job conditional on its current status.
func (s *Store) DeleteJob(ctx context.Context, id int64, from job.Status) error {
	key := jobKey(id)
	txn := func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, key, "status").Result()
		if errors.Is(err, goredis.Nil) {
			return pgqueue.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("pgqueue/redis: delete read status: %w", err)
		}
		if job.Status(current) != from {
			return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, current, from)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, readyKey, strconv.FormatInt(id, 10))
			return nil
		})
		return err
	}

	return s.withCAS(ctx, func() error { return s.client.Watch(ctx, txn, key) })
}

// withCAS runs fn, retrying WATCH conflicts with backoff up to the
// configured bound. Domain errors pass through untouched.
func (s *Store) withCAS(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.casAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.casBackoff.Delay(attempt)):
		}
	}
	return fmt.Errorf("pgqueue/redis: transaction conflict persisted: %w", err)
}

// jobToMap flattens a job into Redis Hash fields.
func jobToMap(j *job.Job) map[string]any {
	return map[string]any{
		"status":     string(j.Status),
		"item":       string(j.Item),
		"message":    j.Message,
		"created_at": j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": j.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// jobFromMap rebuilds a job from Redis Hash fields.
func jobFromMap(id int64, fields map[string]string) (*job.Job, error) {
	j := &job.Job{
		ID:      id,
		Status:  job.Status(fields["status"]),
		Item:    []byte(fields["item"]),
		Message: fields["message"],
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("pgqueue/redis: parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("pgqueue/redis: parse updated_at: %w", err)
	}
	j.CreatedAt = createdAt
	j.UpdatedAt = updatedAt
	return j, nil
}
