// Package worker runs queued executions: it dequeues jobs, drives the node
// traversal runtime and records the terminal outcome.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/outflowhq/outflow/pkg/events"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/protocol"
	"github.com/outflowhq/outflow/pkg/queue"
	"github.com/outflowhq/outflow/pkg/runtime"
	"github.com/outflowhq/outflow/pkg/tracing"
)

type Worker struct {
	persistence persistence.Persistence
	runtime     *runtime.Runtime
	writer      *EventWriter
	queue       queue.Queue
	concurrency int
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewWorker(
	store persistence.Persistence,
	rt *runtime.Runtime,
	writer *EventWriter,
	q queue.Queue,
	concurrency int,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		persistence: store,
		runtime:     rt,
		writer:      writer,
		queue:       q,
		concurrency: concurrency,
		tracer:      tracer,
		logger:      logger.With("module", "worker"),
	}
}

// Start launches the consumer pool. It returns immediately; the pool runs
// until the context is cancelled or the queue is closed.
func (w *Worker) Start(ctx context.Context) error {
	return w.queue.Consume(ctx, w.concurrency, w.Handle)
}

// Handle processes one delivery of an execution job. Returning an error hands
// the job back to the queue retry policy; terminal taxonomy errors are
// recorded as a failed execution instead of being retried.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) error {
	ctx, span := tracing.StartSpan(ctx, w.tracer, "worker.handle",
		attribute.String(tracing.ExecutionIDKey, job.ExecutionID),
		attribute.String(tracing.TenantIDKey, job.TenantID),
		attribute.Int(tracing.AttemptKey, job.Attempt),
	)
	defer span.End()

	execution, err := w.persistence.ExecutionRepository().GetByID(ctx, job.ExecutionID)
	if err != nil {
		tracing.SetError(span, err)
		return err
	}

	w.appendEvent(ctx, execution, models.EventLevelInfo, events.ExecutionStarted, map[string]any{
		"attempt": job.Attempt,
	})

	err = w.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusRunning)
	if err != nil {
		return err
	}

	definition, err := w.persistence.WorkflowRepository().DefinitionByVersion(ctx, execution.WorkflowID, execution.WorkflowVersion)
	if err != nil {
		tracing.SetError(span, err, attribute.Int(tracing.AttemptKey, job.Attempt))
		return w.fail(ctx, execution, job, err)
	}

	result, err := w.runtime.Run(ctx, execution, definition)
	if err != nil {
		tracing.SetError(span, err, attribute.Int(tracing.AttemptKey, job.Attempt))
		return w.fail(ctx, execution, job, err)
	}

	w.appendEvent(ctx, execution, models.EventLevelInfo, events.ExecutionCompleted, map[string]any{
		"actions_executed":     result.ActionsExecuted,
		"stopped_by_condition": result.StoppedByCondition,
	})

	err = w.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusSucceeded)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "execution completed",
		"execution_id", execution.ID, "actions_executed", result.ActionsExecuted)

	return nil
}

// fail decides between queue retry and a terminal failed execution. Only
// transient provider and infrastructure errors are handed back for retry, and
// only while the attempt budget lasts.
func (w *Worker) fail(ctx context.Context, execution *models.Execution, job *queue.Job, cause error) error {
	retryable := protocol.IsRetryable(cause) && job.Attempt < queue.MaxAttempts

	if retryable {
		w.logger.WarnContext(ctx, "execution attempt failed, leaving job for retry",
			"execution_id", execution.ID, "attempt", job.Attempt, "error", cause)

		return cause
	}

	w.appendEvent(ctx, execution, models.EventLevelError, events.ExecutionFailed, map[string]any{
		"error":   cause.Error(),
		"attempt": job.Attempt,
	})

	err := w.persistence.ExecutionRepository().UpdateStatus(ctx, execution.ID, models.ExecutionStatusFailed)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to mark execution failed",
			"execution_id", execution.ID, "error", err)
	}

	w.logger.ErrorContext(ctx, "execution failed",
		"execution_id", execution.ID, "attempt", job.Attempt, "error", cause)

	if protocol.IsRetryable(cause) {
		// Last attempt of a transient failure: propagate so the queue records
		// the job in failed history.
		return cause
	}

	return nil
}

func (w *Worker) appendEvent(ctx context.Context, execution *models.Execution, level models.EventLevel, eventType string, payload map[string]any) {
	event := &models.ExecutionEvent{
		ID:          uuid.New().String(),
		TenantID:    execution.TenantID,
		ExecutionID: execution.ID,
		Level:       level,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}

	err := w.writer.Append(ctx, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to append execution event",
			"execution_id", execution.ID, "event_type", eventType, "error", err)
	}
}
