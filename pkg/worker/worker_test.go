package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/adapters/crm"
	"github.com/outflowhq/outflow/pkg/eventbus"
	"github.com/outflowhq/outflow/pkg/events"
	"github.com/outflowhq/outflow/pkg/executor"
	"github.com/outflowhq/outflow/pkg/idempotency"
	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence/file"
	"github.com/outflowhq/outflow/pkg/queue"
	"github.com/outflowhq/outflow/pkg/registry"
	"github.com/outflowhq/outflow/pkg/runtime"
	"github.com/outflowhq/outflow/pkg/tracing"
)

type noopBus struct{}

func (noopBus) Publish(_ context.Context, _ *models.ExecutionEvent) error { return nil }

func (noopBus) Subscribe(_ context.Context, _ eventbus.EventHandler) error { return nil }

func (noopBus) Close() error { return nil }

func newTestWorker(t *testing.T) (*Worker, *file.Persistence) {
	t.Helper()

	logger := log.WithModule("test")
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register(crm.NewAdapter(crm.Config{DryRun: true}, logger))

	writer := NewEventWriter(store.EventRepository(), noopBus{}, logger)
	exec := executor.NewExecutor(reg, idempotency.NewMemoryLedger(), logger)
	rt := runtime.NewRuntime(exec, writer, logger)

	w := NewWorker(store, rt, writer, queue.NewMemoryQueue(logger), 1, tracing.NewNoopTracer(), logger)

	return w, store
}

func seedExecution(t *testing.T, store *file.Persistence, nodes []*models.WorkflowNode) *models.Execution {
	t.Helper()

	definition := &models.WorkflowDefinition{ID: "wf-1", Version: 1, Nodes: nodes}

	err := store.WorkflowRepository().SaveDefinition(t.Context(), definition)
	require.NoError(t, err)

	execution := &models.Execution{
		ID:              "exec-1",
		TenantID:        "tenant-1",
		ClientID:        "client-1",
		WorkflowID:      "wf-1",
		WorkflowVersion: 1,
		TriggerType:     "lead.created",
		TriggerPayload:  map[string]any{"lead": map[string]any{"id": "lead-9"}},
		Status:          models.ExecutionStatusQueued,
		MaxActions:      5,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	err = store.ExecutionRepository().Save(t.Context(), execution)
	require.NoError(t, err)

	return execution
}

func eventTypes(t *testing.T, store *file.Persistence, executionID string) []string {
	t.Helper()

	list, err := store.EventRepository().ListByExecution(t.Context(), executionID)
	require.NoError(t, err)

	types := make([]string, 0, len(list))
	for _, event := range list {
		types = append(types, event.EventType)
	}

	return types
}

func TestHandle_Success(t *testing.T) {
	w, store := newTestWorker(t)

	execution := seedExecution(t, store, []*models.WorkflowNode{
		{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"event": "lead.created"}},
		{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{
			"action": "crm_update",
			"config": map[string]any{"status": "contacted"},
		}},
	})

	err := w.Handle(t.Context(), &queue.Job{
		ExecutionID: execution.ID,
		TenantID:    execution.TenantID,
		Attempt:     1,
	})
	require.NoError(t, err)

	stored, err := store.ExecutionRepository().GetByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, stored.Status)

	types := eventTypes(t, store, execution.ID)
	assert.Equal(t, events.ExecutionStarted, types[0])
	assert.Equal(t, events.ExecutionCompleted, types[len(types)-1])
	assert.Contains(t, types, events.NodeActionExecuted)
}

func TestHandle_ValidationErrorIsTerminal(t *testing.T) {
	w, store := newTestWorker(t)

	execution := seedExecution(t, store, []*models.WorkflowNode{
		{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{
			"action": "sms_send",
			"config": map[string]any{},
		}},
	})

	err := w.Handle(t.Context(), &queue.Job{
		ExecutionID: execution.ID,
		TenantID:    execution.TenantID,
		Attempt:     1,
	})
	require.NoError(t, err, "terminal failures must not propagate to queue retry")

	stored, err := store.ExecutionRepository().GetByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)

	types := eventTypes(t, store, execution.ID)
	assert.Equal(t, events.ExecutionFailed, types[len(types)-1])

	failed, err := store.EventRepository().ListByExecution(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "unsupported_action:sms_send", failed[len(failed)-1].Payload["error"])
}

func TestHandle_ReplayDoesNotRedispatchActions(t *testing.T) {
	w, store := newTestWorker(t)

	execution := seedExecution(t, store, []*models.WorkflowNode{
		{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{
			"action": "crm_update",
			"config": map[string]any{"status": "contacted"},
		}},
	})

	job := &queue.Job{ExecutionID: execution.ID, TenantID: execution.TenantID, Attempt: 1}

	require.NoError(t, w.Handle(t.Context(), job))

	job.Attempt = 2
	require.NoError(t, w.Handle(t.Context(), job))

	// Both runs append an action event, but the second one carries the cached
	// response instead of a fresh dispatch.
	list, err := store.EventRepository().ListByExecution(t.Context(), execution.ID)
	require.NoError(t, err)

	actionEvents := 0

	for _, event := range list {
		if event.EventType == events.NodeActionExecuted {
			actionEvents++
		}
	}

	assert.Equal(t, 2, actionEvents)
}

func TestHandle_UnknownExecutionPropagates(t *testing.T) {
	w, _ := newTestWorker(t)

	err := w.Handle(t.Context(), &queue.Job{ExecutionID: "missing", Attempt: 1})
	assert.Error(t, err)
}
