// Package worker provides a polling worker pool: N goroutines that each
// claim jobs from a queue and resolve them through a handler. The pool
// is a convenience; any process calling Claim/Complete/Fail/Requeue
// directly is an equally valid worker.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/backoff"
)

// Pool manages a set of concurrent worker goroutines that poll the
// queue and process jobs through the handler.
type Pool struct {
	queue    *pgqueue.Queue
	handler  pgqueue.ProcessFunc
	workerID string
	logger   *slog.Logger

	concurrency  int
	pollInterval time.Duration
	idleBackoff  backoff.Strategy
	limiter      *rate.Limiter

	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithConcurrency sets the number of concurrent worker goroutines.
func WithConcurrency(n int) Option {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval caps how long a worker sleeps between polls of an
// empty queue.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollInterval = d }
}

// WithIdleBackoff sets the delay strategy while the queue stays empty.
// Delays grow per consecutive empty poll and are capped by the poll
// interval.
func WithIdleBackoff(strategy backoff.Strategy) Option {
	return func(p *Pool) { p.idleBackoff = strategy }
}

// WithRateLimit caps the sustained claim rate across the whole pool
// using a token bucket. Zero perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Pool) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for the pool.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a worker pool. Jobs claimed by the pool are resolved
// by the handler's returned Flow; a handler error requeues the job.
func NewPool(queue *pgqueue.Queue, handler pgqueue.ProcessFunc, opts ...Option) *Pool {
	p := &Pool{
		queue:        queue,
		handler:      handler,
		workerID:     uuid.NewString(),
		logger:       slog.Default(),
		concurrency:  10,
		pollInterval: time.Second,
		idleBackoff:  backoff.DefaultIdle(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier. It exists for
// logging and liveness bookkeeping only; the store never records it.
func (p *Pool) WorkerID() string { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID),
		slog.Int("concurrency", p.concurrency),
	)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.processLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context expires first, in-flight handlers are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID))

	// Signal all workers to stop.
	close(p.stopCh)

	// Wait for completion or context deadline.
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancel()
		p.wg.Wait()
	}

	p.cancel()
	return nil
}

// processLoop is run by each worker goroutine.
func (p *Pool) processLoop() {
	defer p.wg.Done()

	idle := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(p.ctx); err != nil {
				return
			}
		}

		err := p.queue.Process(p.ctx, p.handler)
		switch {
		case err == nil:
			idle = 0

		case errors.Is(err, pgqueue.ErrEmpty):
			idle++
			p.sleep(p.idleDelay(idle))

		case errors.Is(err, context.Canceled):
			return

		default:
			p.logger.Error("process job", slog.String("error", err.Error()))
			idle++
			p.sleep(p.idleDelay(idle))
		}
	}
}

// idleDelay grows with consecutive empty polls, capped at pollInterval.
func (p *Pool) idleDelay(idle int) time.Duration {
	d := p.idleBackoff.Delay(idle)
	if d > p.pollInterval {
		return p.pollInterval
	}
	return d
}

// sleep waits for d or until the pool is stopped.
func (p *Pool) sleep(d time.Duration) {
	select {
	case <-p.stopCh:
	case <-time.After(d):
	}
}
