// Package mirror replicates stored uploads to a secondary location in the
// background. Failures are logged and counted; they never reach the caller
// that enqueued the job.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"imageref/internal/platform/metrics"
	"imageref/pkg/platform/circuit"
	"imageref/pkg/platform/sentinel"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 64
	defaultMaxAttempts = 3
	defaultJobTimeout  = 30 * time.Second
)

// ErrStopped is returned by Enqueue after Stop has been called.
var ErrStopped = errors.New("mirror worker stopped")

// Worker consumes replication jobs from a bounded queue.
type Worker struct {
	replicator  Replicator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	breaker     *circuit.Breaker
	newBackOff  func() backoff.BackOff
	workers     int
	maxAttempts int
	jobTimeout  time.Duration

	jobs      chan Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures the Worker.
type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithWorkers sets the number of consumer goroutines.
func WithWorkers(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity. Jobs beyond it are dropped.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.jobs = make(chan Job, n)
		}
	}
}

// WithMaxAttempts bounds the attempts per job, including the first.
func WithMaxAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithJobTimeout bounds a single job across all of its attempts.
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

// WithBackOff sets the retry schedule factory. Each job gets a fresh schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(w *Worker) {
		if fn != nil {
			w.newBackOff = fn
		}
	}
}

func NewWorker(replicator Replicator, opts ...Option) *Worker {
	w := &Worker{
		replicator:  replicator,
		logger:      slog.Default(),
		breaker:     circuit.New("mirror", circuit.WithFailureThreshold(5), circuit.WithCooldown(time.Minute)),
		workers:     defaultWorkers,
		maxAttempts: defaultMaxAttempts,
		jobTimeout:  defaultJobTimeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.jobs == nil {
		w.jobs = make(chan Job, defaultQueueSize)
	}
	return w
}

// Start launches the consumer goroutines. Calling it more than once is a no-op.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.run()
		}
	})
}

// Enqueue hands a job to the workers without blocking. A full queue drops the
// job and returns sentinel.ErrQueueFull.
func (w *Worker) Enqueue(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	select {
	case w.jobs <- job:
		w.observeDepth()
		return nil
	default:
		if w.metrics != nil {
			w.metrics.IncrementMirrorDropped()
		}
		w.logger.Warn("mirror queue full, job dropped",
			"file", job.FileName,
			"category", job.Category,
		)
		return sentinel.ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight and queued jobs. It returns
// ctx.Err() if the deadline passes first; remaining jobs are abandoned.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.jobs)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.observeDepth()
		w.process(job)
	}
}

func (w *Worker) process(job Job) {
	if !w.breaker.Allow() {
		if w.metrics != nil {
			w.metrics.IncrementMirrorSkipped()
		}
		w.logger.Warn("mirror circuit open, job skipped",
			"file", job.FileName,
			"category", job.Category,
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	attempts := 0
	op := func() error {
		attempts++
		return w.replicator.Replicate(ctx, job)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(w.newBackOff(), uint64(w.maxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		w.logger.Debug("mirror attempt failed, retrying",
			"file", job.FileName,
			"attempt", attempts,
			"retry_in", next,
			"error", err,
		)
	})

	if err != nil {
		if w.breaker.RecordFailure() {
			w.logger.Warn("mirror circuit opened", "breaker", w.breaker.Name())
		}
		if w.metrics != nil {
			w.metrics.IncrementMirrorFailed()
		}
		w.logger.Error("mirror replication failed",
			"file", job.FileName,
			"category", job.Category,
			"attempts", attempts,
			"error", err,
		)
		return
	}

	if w.breaker.RecordSuccess() {
		w.logger.Info("mirror circuit closed", "breaker", w.breaker.Name())
	}
	if w.metrics != nil {
		w.metrics.IncrementMirrorReplicated()
	}
	w.logger.Info("mirror replicated",
		"file", job.FileName,
		"category", job.Category,
		"attempts", attempts,
	)
}

func (w *Worker) observeDepth() {
	if w.metrics != nil {
		w.metrics.SetMirrorQueueDepth(len(w.jobs))
	}
}
