package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
)

// EnqueueJob inserts a new ready job and fills in the store-assigned ID
// and timestamps.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (status, item, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(j.Status), string(j.Item), nullIfEmpty(j.Message), now, now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", pgqueue.ErrConstraintViolation, err)
		}
		return fmt.Errorf("pgqueue/sqlite: enqueue job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("pgqueue/sqlite: enqueue job id: %w", err)
	}

	j.ID = id
	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

// ClaimNextJob claims the oldest ready job with an optimistic
// compare-and-swap loop: read a candidate id, then mark it in-progress
// conditional on the status still being ready. Zero rows affected means
// another claimer won the race; back off and retry against the next
// candidate. Race losses are invisible to the caller.
func (s *Store) ClaimNextJob(ctx context.Context) (*job.Job, error) {
	for attempt := 1; ; attempt++ {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM queue WHERE status = 'ready' ORDER BY id ASC LIMIT 1`,
		).Scan(&id)
		if isNoRows(err) {
			return nil, pgqueue.ErrEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("pgqueue/sqlite: claim candidate: %w", err)
		}

		res, err := s.db.ExecContext(ctx, `
			UPDATE queue
			SET status = 'in-progress', updated_at = ?
			WHERE id = ? AND status = 'ready'`,
			time.Now().UTC(), id,
		)
		if err != nil {
			return nil, fmt.Errorf("pgqueue/sqlite: claim job: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("pgqueue/sqlite: claim rows affected: %w", err)
		}
		if rows == 1 {
			return s.GetJob(ctx, id)
		}

		// Lost the race. Retry within the bound.
		if attempt >= s.claimAttempts {
			return nil, pgqueue.ErrEmpty
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.claimBackoff.Delay(attempt)):
		}
	}
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id int64) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, item, message, created_at, updated_at
		FROM queue
		WHERE id = ?`,
		id,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, pgqueue.ErrJobNotFound
		}
		return nil, fmt.Errorf("pgqueue/sqlite: get job: %w", err)
	}
	return j, nil
}

// UpdateJob transitions a job conditional on its current status.
func (s *Store) UpdateJob(ctx context.Context, id int64, from, to job.Status, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue
		SET status = ?, message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), nullIfEmpty(message), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %v", pgqueue.ErrConstraintViolation, err)
		}
		return fmt.Errorf("pgqueue/sqlite: update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgqueue/sqlite: update rows affected: %w", err)
	}
	if rows == 0 {
		return s.conflictError(ctx, id, from)
	}
	return nil
}

// DeleteJob removes a job conditional on its current status.
func (s *Store) DeleteJob(ctx context.Context, id int64, from job.Status) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queue WHERE id = ? AND status = ?`,
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("pgqueue/sqlite: delete job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgqueue/sqlite: delete rows affected: %w", err)
	}
	if rows == 0 {
		return s.conflictError(ctx, id, from)
	}
	return nil
}

// conflictError disambiguates a zero-rows-affected conditional write.
func (s *Store) conflictError(ctx context.Context, id int64, want job.Status) error {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %d is %q, not %q", pgqueue.ErrInvalidTransition, id, j.Status, want)
}

// scanJob scans a single job row.
func scanJob(row *sql.Row) (*job.Job, error) {
	var (
		j       job.Job
		status  string
		item    string
		message sql.NullString
	)
	err := row.Scan(&j.ID, &status, &item, &message, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	j.Item = []byte(item)
	if message.Valid {
		j.Message = message.String
	}
	return &j, nil
}

// nullIfEmpty maps the unset message to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
