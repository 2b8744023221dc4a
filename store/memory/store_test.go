package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Job Store tests
// ──────────────────────────────────────────────────

func newJob() *job.Job {
	return &job.Job{
		Status: job.StatusReady,
		Item:   []byte(`{"task":"x"}`),
	}
}

func TestEnqueueAssignsIncreasingIDs(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		j := newJob()
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		if j.ID <= last {
			t.Fatalf("got id %d after %d, want strictly increasing", j.ID, last)
		}
		last = j.ID
	}
}

func TestEnqueueRejectsConstraintViolation(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		j    *job.Job
	}{
		{"message on ready", &job.Job{Status: job.StatusReady, Item: []byte(`{}`), Message: "oops"}},
		{"failed without message", &job.Job{Status: job.StatusFailed, Item: []byte(`{}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.EnqueueJob(ctx, tt.j)
			if !errors.Is(err, pgqueue.ErrConstraintViolation) {
				t.Fatalf("got %v, want ErrConstraintViolation", err)
			}
		})
	}
}

func TestClaimIsFIFO(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var want []int64
	for i := 0; i < 3; i++ {
		j := newJob()
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		want = append(want, j.ID)
	}

	for _, id := range want {
		j, err := s.ClaimNextJob(ctx)
		if err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if j.ID != id {
			t.Fatalf("claimed id %d, want %d", j.ID, id)
		}
		if j.Status != job.StatusInProgress {
			t.Fatalf("claimed job has status %q, want %q", j.Status, job.StatusInProgress)
		}
	}

	if _, err := s.ClaimNextJob(ctx); !errors.Is(err, pgqueue.ErrEmpty) {
		t.Fatalf("claim on empty queue: got %v, want ErrEmpty", err)
	}
}

func TestConcurrentClaimsNeverDuplicate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	const jobs = 50
	const claimers = 80

	for i := 0; i < jobs; i++ {
		if err := s.EnqueueJob(ctx, newJob()); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}

	var (
		mu      sync.Mutex
		claimed []int64
		empty   int
		wg      sync.WaitGroup
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := s.ClaimNextJob(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed = append(claimed, j.ID)
			case errors.Is(err, pgqueue.ErrEmpty):
				empty++
			default:
				t.Errorf("ClaimNextJob: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Fatalf("claimed %d jobs, want %d", len(claimed), jobs)
	}
	if empty != claimers-jobs {
		t.Fatalf("got %d empty claims, want %d", empty, claimers-jobs)
	}

	seen := make(map[int64]bool, len(claimed))
	for _, id := range claimed {
		if seen[id] {
			t.Fatalf("job %d claimed twice", id)
		}
		seen[id] = true
	}
}

func TestUpdateJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob()
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	tests := []struct {
		name    string
		id      int64
		from    job.Status
		to      job.Status
		message string
		wantErr error
	}{
		{"wrong current status", j.ID, job.StatusReady, job.StatusInProgress, "", pgqueue.ErrInvalidTransition},
		{"missing message on fail", j.ID, job.StatusInProgress, job.StatusFailed, "", pgqueue.ErrConstraintViolation},
		{"unknown id", j.ID + 100, job.StatusInProgress, job.StatusFailed, "x", pgqueue.ErrJobNotFound},
		{"fail with message", j.ID, job.StatusInProgress, job.StatusFailed, "disk full", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateJob(ctx, tt.id, tt.from, tt.to, tt.message)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusFailed || got.Message != "disk full" {
		t.Fatalf("got (%q, %q), want (failed, disk full)", got.Status, got.Message)
	}
}

func TestRequeueRoundTrip(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob()
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.UpdateJob(ctx, claimed.ID, job.StatusInProgress, job.StatusReady, ""); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	got, err := s.GetJob(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusReady || got.Message != "" {
		t.Fatalf("after requeue got (%q, %q), want (ready, empty)", got.Status, got.Message)
	}

	// The job must be claimable again.
	again, err := s.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("ClaimNextJob after requeue: %v", err)
	}
	if again.ID != claimed.ID {
		t.Fatalf("reclaimed id %d, want %d", again.ID, claimed.ID)
	}
}

func TestDeleteJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob()
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// Delete conditional on in-progress must reject a ready job.
	err := s.DeleteJob(ctx, j.ID, job.StatusInProgress)
	if !errors.Is(err, pgqueue.ErrInvalidTransition) {
		t.Fatalf("delete ready job: got %v, want ErrInvalidTransition", err)
	}

	if _, err := s.ClaimNextJob(ctx); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.DeleteJob(ctx, j.ID, job.StatusInProgress); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	// Second delete: the id is gone for good.
	err = s.DeleteJob(ctx, j.ID, job.StatusInProgress)
	if !errors.Is(err, pgqueue.ErrJobNotFound) {
		t.Fatalf("second delete: got %v, want ErrJobNotFound", err)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, pgqueue.ErrJobNotFound) {
		t.Fatalf("get after delete: got %v, want ErrJobNotFound", err)
	}
}

// The status/message constraint must hold for every committed row no
// matter which operations ran.
func TestInvariantHoldsUnderMixedOperations(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.EnqueueJob(ctx, newJob()); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			j, err := s.ClaimNextJob(ctx)
			if err != nil {
				return
			}
			switch n % 3 {
			case 0:
				_ = s.UpdateJob(ctx, j.ID, job.StatusInProgress, job.StatusFailed, "boom")
			case 1:
				_ = s.UpdateJob(ctx, j.ID, job.StatusInProgress, job.StatusReady, "")
			case 2:
				_ = s.DeleteJob(ctx, j.ID, job.StatusInProgress)
			}
		}(i)
	}
	wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, j := range s.jobs {
		set := j.Message != ""
		failed := j.Status == job.StatusFailed
		if set != failed {
			t.Errorf("job %d violates invariant: status=%q message=%q", id, j.Status, j.Message)
		}
	}
}
