package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
)

// EnqueueJob inserts a new ready job and fills in the store-assigned ID
// and timestamps.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue (status, item, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		string(j.Status), j.Item, nullIfEmpty(j.Message),
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", pgqueue.ErrConstraintViolation, constraintName(err))
		}
		return fmt.Errorf("pgqueue/postgres: enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically marks the oldest ready job in-progress and
// returns it. FOR UPDATE SKIP LOCKED makes the select-and-mark a single
// atomic unit as observed by other claimers: a row locked by a
// concurrent transaction is skipped, never handed out twice and never
// waited on.
func (s *Store) ClaimNextJob(ctx context.Context) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE queue
		SET status = 'in-progress', updated_at = NOW()
		WHERE id = (
			SELECT id FROM queue
			WHERE status = 'ready'
			ORDER BY id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, status, item, message, created_at, updated_at`,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, pgqueue.ErrEmpty
		}
		return nil, fmt.Errorf("pgqueue/postgres: claim next job: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id int64) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, item, message, created_at, updated_at
		FROM queue
		WHERE id = $1`,
		id,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, pgqueue.ErrJobNotFound
		}
		return nil, fmt.Errorf("pgqueue/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob transitions a job conditional on its current status. The
// WHERE clause carries the expected status, so the check and the write
// are one statement; there is no window in which another transaction
// can observe a half-applied transition.
func (s *Store) UpdateJob(ctx context.Context, id int64, from, to job.Status, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue
		SET status = $3, message = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), nullIfEmpty(message),
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %s", pgqueue.ErrConstraintViolation, constraintName(err))
		}
		return fmt.Errorf("pgqueue/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictError(ctx, id, from)
	}
	return nil
}

// DeleteJob removes a job conditional on its current status.
func (s *Store) DeleteJob(ctx context.Context, id int64, from job.Status) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue WHERE id = $1 AND status = $2`,
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("pgqueue/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictError(ctx, id, from)
	}
	return nil
}

// conflictError disambiguates a zero-rows-affected conditional write:
// either the job does not exist, or it exists with a different status.
func (s *Store) conflictError(ctx context.Context, id int64, want job.Status) error {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, j.Status, want)
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j       job.Job
		status  string
		message *string
	)
	err := row.Scan(&j.ID, &status, &j.Item, &message, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	if message != nil {
		j.Message = *message
	}
	return &j, nil
}

// nullIfEmpty maps the unset message to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
