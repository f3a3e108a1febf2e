package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue with the same dedup and retry semantics
// as RedisQueue. Used in tests and single-process development.
type MemoryQueue struct {
	logger  *slog.Logger
	jobs    chan *Job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	inUse   map[string]bool
	history []*Job
}

func NewMemoryQueue(logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		logger:  logger.With("module", "memory_queue"),
		jobs:    make(chan *Job, 1024),
		stopCh:  make(chan struct{}),
		backoff: Backoff,
		inUse:   make(map[string]bool),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) (bool, error) {
	q.mu.Lock()

	if q.inUse[job.ExecutionID] {
		q.mu.Unlock()

		return false, nil
	}

	q.inUse[job.ExecutionID] = true
	q.mu.Unlock()

	job.Attempt = 1
	q.jobs <- job

	return true, nil
}

func (q *MemoryQueue) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	for range concurrency {
		q.wg.Add(1)

		go q.consumeLoop(ctx, handler)
	}

	return nil
}

func (q *MemoryQueue) consumeLoop(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			err := handler(ctx, job)
			if err == nil {
				q.settle(job)

				continue
			}

			q.logger.WarnContext(ctx, "job handler failed",
				"execution_id", job.ExecutionID, "attempt", job.Attempt, "error", err)

			if job.Attempt >= MaxAttempts {
				q.settle(job)

				continue
			}

			job.Attempt++

			q.wg.Add(1)

			time.AfterFunc(q.backoff(job.Attempt), func() {
				defer q.wg.Done()

				select {
				case q.jobs <- job:
				case <-q.stopCh:
				}
			})
		}
	}
}

func (q *MemoryQueue) settle(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inUse, job.ExecutionID)

	q.history = append(q.history, job)
	if len(q.history) > HistoryLimit {
		q.history = q.history[len(q.history)-HistoryLimit:]
	}
}

// History returns settled jobs, oldest first.
func (q *MemoryQueue) History() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, len(q.history))
	copy(out, q.history)

	return out
}

func (q *MemoryQueue) HealthCheck(_ context.Context) error {
	return nil
}

func (q *MemoryQueue) Close() error {
	close(q.stopCh)
	q.wg.Wait()

	return nil
}
