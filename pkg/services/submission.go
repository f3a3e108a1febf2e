// Package services contains the application services behind the HTTP API.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/queue"
	"github.com/outflowhq/outflow/pkg/registry"
	"github.com/outflowhq/outflow/pkg/safety"
)

// SubmitRequest is the validated submission contract for one execution.
type SubmitRequest struct {
	WorkflowID      string
	WorkflowVersion int
	ExecutionID     string
	TenantID        string
	ClientID        string
	TriggerType     string
	TriggerPayload  map[string]any
	MaxActions      int
}

// Submission accepts execution requests: it validates the workflow's action
// configs, runs the safety gate, persists the execution and enqueues the job.
// The HTTP layer returns immediately; the worker pool does the run.
type Submission struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	gate        *safety.Gate
	queue       queue.Queue
	logger      *slog.Logger
}

func NewSubmission(
	store persistence.Persistence,
	reg *registry.Registry,
	gate *safety.Gate,
	q queue.Queue,
	logger *slog.Logger,
) *Submission {
	return &Submission{
		persistence: store,
		registry:    reg,
		gate:        gate,
		queue:       q,
		logger:      logger.With("module", "submission"),
	}
}

func (s *Submission) Submit(ctx context.Context, req SubmitRequest) (*models.Execution, error) {
	definition, err := s.persistence.WorkflowRepository().DefinitionByVersion(ctx, req.WorkflowID, req.WorkflowVersion)
	if err != nil {
		return nil, err
	}

	err = s.registry.ValidateDefinition(definition)
	if err != nil {
		return nil, err
	}

	maxActions := req.MaxActions
	if maxActions <= 0 {
		maxActions = safety.DefaultMaxActions
	}

	pendingApprovals, err := s.persistence.ExecutionRepository().CountQueued(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	err = s.gate.Check(req.TenantID, pendingApprovals, definition.ActionNodeCount(), maxActions)
	if err != nil {
		return nil, err
	}

	executionID := req.ExecutionID
	if executionID == "" {
		executionID = uuid.New().String()
	} else {
		_, err = s.persistence.ExecutionRepository().GetByID(ctx, executionID)
		if err == nil {
			return nil, persistence.ErrExecutionAlreadyExists
		}

		if !persistence.IsExecutionNotFound(err) {
			return nil, err
		}
	}

	now := time.Now().UTC()

	execution := &models.Execution{
		ID:              executionID,
		TenantID:        req.TenantID,
		ClientID:        req.ClientID,
		WorkflowID:      req.WorkflowID,
		WorkflowVersion: req.WorkflowVersion,
		TriggerType:     req.TriggerType,
		TriggerPayload:  req.TriggerPayload,
		Status:          models.ExecutionStatusQueued,
		MaxActions:      maxActions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, err
	}

	accepted, err := s.queue.Enqueue(ctx, &queue.Job{
		ExecutionID:     execution.ID,
		TenantID:        execution.TenantID,
		WorkflowID:      execution.WorkflowID,
		WorkflowVersion: execution.WorkflowVersion,
		TriggerType:     execution.TriggerType,
		TriggerPayload:  execution.TriggerPayload,
	})
	if err != nil {
		return nil, err
	}

	if !accepted {
		s.logger.InfoContext(ctx, "execution already enqueued", "execution_id", execution.ID)
	}

	return execution, nil
}

func (s *Submission) FetchExecution(ctx context.Context, id string) (*models.Execution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, id)
}

func (s *Submission) ListEvents(ctx context.Context, executionID string) ([]*models.ExecutionEvent, error) {
	_, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return s.persistence.EventRepository().ListByExecution(ctx, executionID)
}

// HealthCheck reports storage reachability for the API health endpoint.
func (s *Submission) HealthCheck(ctx context.Context) (string, bool) {
	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return err.Error(), false
	}

	return "ok", true
}
