// Package queue provides the durable execution job transport. One job per
// execution; the execution id is the deduplication key, so enqueueing the
// same execution twice while the first is still in flight is a no-op.
package queue

import (
	"context"
	"time"
)

const (
	// MaxAttempts is how many times a job is delivered before it is dropped
	// into failed history.
	MaxAttempts = 5

	// BaseBackoff is the first retry delay; subsequent retries double it.
	BaseBackoff = 1 * time.Second

	// HistoryLimit caps retained completed/failed job history. Operational
	// hygiene only, not correctness-bearing.
	HistoryLimit = 100

	// DefaultConcurrency is the worker pool size when none is configured.
	DefaultConcurrency = 10
)

// Job is the payload handed from the queue to a worker.
type Job struct {
	ExecutionID     string         `json:"execution_id"`
	TenantID        string         `json:"tenant_id"`
	WorkflowID      string         `json:"workflow_id"`
	WorkflowVersion int            `json:"workflow_version"`
	TriggerType     string         `json:"trigger_type"`
	TriggerPayload  map[string]any `json:"trigger_payload,omitempty"`
	Attempt         int            `json:"attempt"`
}

// Handler processes one delivery of a job. Returning an error lets the queue
// redeliver the job up to MaxAttempts; returning nil marks it completed.
type Handler func(ctx context.Context, job *Job) error

// Queue is the execution job transport. Implementations own the dedup key
// lifecycle: it is taken on Enqueue and released when the job reaches a
// terminal outcome.
type Queue interface {
	// Enqueue adds a job unless one with the same execution id is already in
	// flight. The boolean reports whether the job was accepted.
	Enqueue(ctx context.Context, job *Job) (bool, error)

	// Consume runs a worker pool of the given concurrency until the context is
	// cancelled or Close is called.
	Consume(ctx context.Context, concurrency int, handler Handler) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// Backoff returns the delay before the given delivery attempt (1-based).
func Backoff(attempt int) time.Duration {
	delay := BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	return delay
}
