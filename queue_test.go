package pgqueue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
	"github.com/unionlabs/pg-queue/store/memory"
)

func newQueue() *pgqueue.Queue {
	return pgqueue.New(memory.New())
}

// The worked end-to-end scenario: enqueue, claim, fail, empty.
func TestQueueScenario(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	j, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if j.Status != job.StatusReady || j.Message != "" {
		t.Fatalf("after enqueue got (%q, %q), want (ready, empty)", j.Status, j.Message)
	}

	var item map[string]string
	if err := json.Unmarshal(j.Item, &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	if item["task"] != "x" {
		t.Fatalf("item round-trip: got %v", item)
	}

	claimed, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.ID != id || claimed.Status != job.StatusInProgress {
		t.Fatalf("claimed (%d, %q), want (%d, in-progress)", claimed.ID, claimed.Status, id)
	}

	if err := q.Fail(ctx, id, "disk full"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	j, err = q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after fail: %v", err)
	}
	if j.Status != job.StatusFailed || j.Message != "disk full" {
		t.Fatalf("after fail got (%q, %q), want (failed, disk full)", j.Status, j.Message)
	}

	// The failed job is terminal; nothing is left to claim.
	if _, err := q.Claim(ctx); !errors.Is(err, pgqueue.ErrEmpty) {
		t.Fatalf("second claim: got %v, want ErrEmpty", err)
	}
}

func TestQueueClaimOrderIsFIFO(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	var ids []int64
	for _, task := range []string{"a", "b", "c"} {
		id, err := q.Enqueue(ctx, map[string]string{"task": task})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, id)
	}

	for _, want := range ids {
		j, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if j.ID != want {
			t.Fatalf("claimed %d, want %d", j.ID, want)
		}
	}
}

func TestQueueComplete(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Completing an unclaimed job is rejected.
	err = q.Complete(ctx, id)
	if !errors.Is(err, pgqueue.ErrInvalidTransition) {
		t.Fatalf("complete ready job: got %v, want ErrInvalidTransition", err)
	}

	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := q.Complete(ctx, id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Completion removes the record; a second complete cannot succeed.
	err = q.Complete(ctx, id)
	if !errors.Is(err, pgqueue.ErrJobNotFound) {
		t.Fatalf("second complete: got %v, want ErrJobNotFound", err)
	}
}

func TestQueueFailValidation(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"fail unclaimed job", func() error { return q.Fail(ctx, id, "boom") }, pgqueue.ErrInvalidTransition},
		{"requeue unclaimed job", func() error { return q.Requeue(ctx, id) }, pgqueue.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// Empty message is a constraint violation, checked before any write.
	err = q.Fail(ctx, id, "")
	if !errors.Is(err, pgqueue.ErrConstraintViolation) {
		t.Fatalf("fail with empty message: got %v, want ErrConstraintViolation", err)
	}

	// The rejection left the job untouched.
	j, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if j.Status != job.StatusInProgress || j.Message != "" {
		t.Fatalf("after rejected fail got (%q, %q), want (in-progress, empty)", j.Status, j.Message)
	}
}

func TestQueueRequeueRoundTrip(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := q.Requeue(ctx, id); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	j, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if j.Status != job.StatusReady || j.Message != "" {
		t.Fatalf("after requeue got (%q, %q), want (ready, empty)", j.Status, j.Message)
	}

	// Requeueing a ready job again is rejected.
	err = q.Requeue(ctx, id)
	if !errors.Is(err, pgqueue.ErrInvalidTransition) {
		t.Fatalf("double requeue: got %v, want ErrInvalidTransition", err)
	}
}

func TestQueueUnknownID(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"get", func() error { _, err := q.Get(ctx, 42); return err }},
		{"complete", func() error { return q.Complete(ctx, 42) }},
		{"fail", func() error { return q.Fail(ctx, 42, "boom") }},
		{"requeue", func() error { return q.Requeue(ctx, 42) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, pgqueue.ErrJobNotFound) {
				t.Fatalf("got %v, want ErrJobNotFound", err)
			}
		})
	}
}

func TestQueueProcess(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Requeue flow leaves the job claimable again.
	err = q.Process(ctx, func(_ context.Context, j *job.Job) (pgqueue.Flow, error) {
		if j.ID != id {
			t.Fatalf("handler got id %d, want %d", j.ID, id)
		}
		return pgqueue.Requeue(), nil
	})
	if err != nil {
		t.Fatalf("Process requeue: %v", err)
	}

	// Handler error also requeues, and the error propagates.
	handlerErr := errors.New("transient")
	err = q.Process(ctx, func(_ context.Context, _ *job.Job) (pgqueue.Flow, error) {
		return pgqueue.Flow{}, handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("Process error: got %v, want %v", err, handlerErr)
	}
	if j, err := q.Get(ctx, id); err != nil || j.Status != job.StatusReady {
		t.Fatalf("after handler error got (%v, %v), want ready job", j, err)
	}

	// Success flow deletes the job.
	err = q.Process(ctx, func(_ context.Context, _ *job.Job) (pgqueue.Flow, error) {
		return pgqueue.Success(), nil
	})
	if err != nil {
		t.Fatalf("Process success: %v", err)
	}
	if _, err := q.Get(ctx, id); !errors.Is(err, pgqueue.ErrJobNotFound) {
		t.Fatalf("after success: got %v, want ErrJobNotFound", err)
	}

	// Nothing left: Process surfaces ErrEmpty.
	err = q.Process(ctx, func(_ context.Context, _ *job.Job) (pgqueue.Flow, error) {
		t.Fatal("handler must not run on an empty queue")
		return pgqueue.Success(), nil
	})
	if !errors.Is(err, pgqueue.ErrEmpty) {
		t.Fatalf("Process on empty queue: got %v, want ErrEmpty", err)
	}
}

func TestQueueProcessFailFlow(t *testing.T) {
	t.Parallel()
	q := newQueue()
	ctx := context.Background()

	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	err = q.Process(ctx, func(_ context.Context, _ *job.Job) (pgqueue.Flow, error) {
		return pgqueue.Fail("permanent"), nil
	})
	if err != nil {
		t.Fatalf("Process fail: %v", err)
	}

	j, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if j.Status != job.StatusFailed || j.Message != "permanent" {
		t.Fatalf("got (%q, %q), want (failed, permanent)", j.Status, j.Message)
	}
}
