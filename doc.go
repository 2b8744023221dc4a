// Package pgqueue provides a persistent, concurrency-safe FIFO work
// queue backed by a durable store. Not built for high throughput, but
// comfortable at around a thousand items per second.
//
// Any number of independent workers share one logical store. Each job is
// claimed by at most one worker at a time; the claim is an atomic
// select-and-mark on the oldest ready job, so concurrent claimers never
// double-process and never lose work. Correctness is delegated to the
// store's atomic read-modify primitives; there is no in-process
// scheduler and no cross-node coordination.
//
// # Quick Start
//
//	s, err := postgres.New(ctx, "postgres://localhost/app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	q := pgqueue.New(s)
//
//	id, err := q.Enqueue(ctx, map[string]string{"task": "x"})
//
//	err = q.Process(ctx, func(ctx context.Context, j *job.Job) (pgqueue.Flow, error) {
//	    if err := handle(j.Item); err != nil {
//	        return pgqueue.Fail(err.Error()), nil
//	    }
//	    return pgqueue.Success(), nil
//	})
//
// # Job Lifecycle
//
// A job is created ready, owned by nobody. Claim moves it to
// in-progress, granting logical ownership to one worker (the store
// records that it is owned, not who owns it). From in-progress it either
// completes (deleted; there is no "succeeded" status), fails permanently
// (terminal, with a mandatory message), or is explicitly requeued back to
// ready. Nothing moves a job back to ready automatically; crash recovery
// is an external liveness monitor calling Requeue.
//
// # Backends
//
//   - store/postgres: pgx/v5, FOR UPDATE SKIP LOCKED claim
//   - store/sqlite: mattn/go-sqlite3, compare-and-swap claim loop
//   - store/redis: go-redis/v9, sorted-set FIFO with ZPOPMIN claim
//   - store/memory: in-memory, for development and testing
package pgqueue
