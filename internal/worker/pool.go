// Package worker runs enrichment tasks off the request path on a bounded
// pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/quizforge-api/internal/observability"
)

// ErrQueueFull indicates the task queue cannot accept more work right now.
// Callers resolve the item inline with template feedback instead of blocking
// the request path.
var ErrQueueFull = errors.New("enrichment queue is full")

// Task is one "enrich this item" unit of work.
type Task struct {
	SubmissionID uint
	ItemID       uint
	UserID       uint
}

// Handler consumes enrichment tasks. Implementations own completion counting
// and state transitions; the pool only schedules.
type Handler interface {
	HandleEnrichment(ctx context.Context, task Task)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task Task)

// HandleEnrichment calls f(ctx, task).
func (f HandlerFunc) HandleEnrichment(ctx context.Context, task Task) {
	f(ctx, task)
}

// Pool drains the task queue with a fixed number of workers. Items within one
// submission may resolve in any order; the handler's completion counter, not
// queue position, decides when a submission is done.
type Pool struct {
	queue   chan Task
	workers int
	handler Handler
	logger  zerolog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool constructs a pool with the given concurrency and queue capacity.
func NewPool(workers, queueSize int, handler Handler, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Pool{
		queue:   make(chan Task, queueSize),
		workers: workers,
		handler: handler,
		logger:  logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. They exit when the context is cancelled or the
// queue is closed via Stop.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("worker pool started")
}

// Enqueue offers a task without blocking the caller.
func (p *Pool) Enqueue(task Task) error {
	select {
	case p.queue <- task:
		observability.QueueDepth().Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Int("worker", id).Msg("worker stopping")
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}

			observability.QueueDepth().Dec()
			start := time.Now()
			p.handler.HandleEnrichment(ctx, task)
			observability.EnrichmentDuration().Observe(time.Since(start).Seconds())
		}
	}
}
