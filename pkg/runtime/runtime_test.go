package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/events"
	"github.com/outflowhq/outflow/pkg/executor"
	"github.com/outflowhq/outflow/pkg/idempotency"
	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/protocol"
	"github.com/outflowhq/outflow/pkg/registry"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*models.ExecutionEvent
}

func (s *recordingSink) Append(_ context.Context, event *models.ExecutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.EventType)
	}

	return types
}

func (s *recordingSink) byType(eventType string) []*models.ExecutionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*models.ExecutionEvent, 0)

	for _, event := range s.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type fakeAdapter struct {
	calls int
}

func (a *fakeAdapter) ID() string { return "crm_update" }

func (a *fakeAdapter) ConfigSchema() string { return `{"type": "object"}` }

func (a *fakeAdapter) Execute(_ context.Context, _ protocol.ActionInput, _ protocol.ActionContext) (map[string]any, error) {
	a.calls++

	return map[string]any{"delivered": true}, nil
}

func newTestRuntime(adapter protocol.Adapter) (*Runtime, *recordingSink) {
	logger := log.WithModule("test")

	reg := registry.NewRegistry(logger)
	reg.Register(adapter)

	sink := &recordingSink{}
	exec := executor.NewExecutor(reg, idempotency.NewMemoryLedger(), logger)

	return NewRuntime(exec, sink, logger), sink
}

func testExecution(triggerType string, maxActions int, triggerPayload map[string]any) *models.Execution {
	return &models.Execution{
		ID:              "exec-1",
		TenantID:        "tenant-1",
		ClientID:        "client-1",
		WorkflowID:      "wf-1",
		WorkflowVersion: 1,
		TriggerType:     triggerType,
		TriggerPayload:  triggerPayload,
		Status:          models.ExecutionStatusRunning,
		MaxActions:      maxActions,
	}
}

func actionNode(id string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Type: models.NodeTypeAction,
		Config: map[string]any{
			"action": "crm_update",
			"config": map[string]any{"status": "contacted", "leadId": id},
		},
	}
}

func TestRun_TriggerMismatchContinues(t *testing.T) {
	adapter := &fakeAdapter{}
	rt, sink := newTestRuntime(adapter)

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"event": "lead.created"}},
			actionNode("a1"),
		},
	}

	result, err := rt.Run(t.Context(), testExecution("lead.updated", 5, nil), definition)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ActionsExecuted)
	assert.Equal(t, 1, adapter.calls)

	skipped := sink.byType(events.NodeTriggerSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, models.EventLevelWarn, skipped[0].Level)
}

func TestRun_TriggerMatchEmitsInfo(t *testing.T) {
	rt, sink := newTestRuntime(&fakeAdapter{})

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"event": "lead.created"}},
		},
	}

	_, err := rt.Run(t.Context(), testExecution("lead.created", 5, nil), definition)
	require.NoError(t, err)

	require.Len(t, sink.byType(events.NodeTriggerMatched), 1)
	assert.Empty(t, sink.byType(events.NodeTriggerSkipped))
}

func TestRun_StopOnFalseHaltsTraversal(t *testing.T) {
	adapter := &fakeAdapter{}
	rt, sink := newTestRuntime(adapter)

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "c1", Type: models.NodeTypeCondition, Config: map[string]any{
				"operator":    "equals",
				"path":        "lead.score",
				"value":       float64(10),
				"stopOnFalse": true,
			}},
			actionNode("a1"),
		},
	}

	payload := map[string]any{"lead": map[string]any{"score": float64(7)}}

	result, err := rt.Run(t.Context(), testExecution("lead.created", 5, payload), definition)
	require.NoError(t, err)

	assert.True(t, result.StoppedByCondition)
	assert.Zero(t, result.ActionsExecuted)
	assert.Zero(t, adapter.calls)

	// Exactly one warn condition event, then the stop marker, then nothing.
	evaluated := sink.byType(events.NodeConditionEvaluated)
	require.Len(t, evaluated, 1)
	assert.Equal(t, models.EventLevelWarn, evaluated[0].Level)

	types := sink.types()
	assert.Equal(t, events.ExecutionStoppedByCondition, types[len(types)-1])
	assert.Empty(t, sink.byType(events.NodeActionExecuted))
}

func TestRun_FalseConditionWithoutStopContinues(t *testing.T) {
	adapter := &fakeAdapter{}
	rt, _ := newTestRuntime(adapter)

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "c1", Type: models.NodeTypeCondition, Config: map[string]any{
				"operator": "exists",
				"path":     "lead.missing",
			}},
			actionNode("a1"),
		},
	}

	result, err := rt.Run(t.Context(), testExecution("lead.created", 5, map[string]any{}), definition)
	require.NoError(t, err)

	assert.False(t, result.StoppedByCondition)
	assert.Equal(t, 1, adapter.calls)
}

func TestRun_ConditionOperators(t *testing.T) {
	payload := map[string]any{
		"lead": map[string]any{
			"score":    float64(10),
			"verified": true,
		},
	}

	tests := []struct {
		name     string
		operator string
		path     string
		value    any
		want     bool
	}{
		{"exists hit", "exists", "lead.score", nil, true},
		{"exists miss", "exists", "lead.name", nil, false},
		{"equals hit", "equals", "lead.score", float64(10), true},
		{"equals miss", "equals", "lead.score", float64(7), false},
		{"not_equals hit", "not_equals", "lead.score", float64(7), true},
		{"is_true hit", "is_true", "lead.verified", nil, true},
		{"is_true on non-bool", "is_true", "lead.score", nil, false},
		{"unknown operator", "regex", "lead.score", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateCondition(tt.operator, tt.path, tt.value, payload)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_DelayClampsToTwoSeconds(t *testing.T) {
	rt, sink := newTestRuntime(&fakeAdapter{})

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "d1", Type: models.NodeTypeDelay, Config: map[string]any{"ms": float64(50000)}},
		},
	}

	start := time.Now()

	_, err := rt.Run(t.Context(), testExecution("lead.created", 5, nil), definition)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 3*time.Second)

	completed := sink.byType(events.NodeDelayCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 50000, completed[0].Payload["requestedMs"])
	assert.Equal(t, 2000, completed[0].Payload["appliedMs"])
}

func TestRun_ActionCapEnforcedMidTraversal(t *testing.T) {
	adapter := &fakeAdapter{}
	rt, sink := newTestRuntime(adapter)

	nodes := make([]*models.WorkflowNode, 0, 7)
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		nodes = append(nodes, actionNode(id))
	}

	// A node after the cap that must never be reached.
	nodes = append(nodes, &models.WorkflowNode{ID: "d7", Type: models.NodeTypeDelay, Config: map[string]any{"ms": float64(10)}})

	definition := &models.WorkflowDefinition{ID: "wf-1", Version: 1, Nodes: nodes}

	result, err := rt.Run(t.Context(), testExecution("lead.created", 5, nil), definition)

	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrExecutionCapExceeded)
	assert.Equal(t, 5, adapter.calls, "exactly five actions dispatch before the cap trips")
	assert.Equal(t, 6, result.ActionsExecuted, "the counter increments before the over-cap check")
	assert.Empty(t, sink.byType(events.NodeDelayCompleted), "no node after the cap is reached")
}

func TestRun_UnsupportedNodeTypeHalts(t *testing.T) {
	rt, _ := newTestRuntime(&fakeAdapter{})

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "x1", Type: "webhook", Config: map[string]any{}},
		},
	}

	_, err := rt.Run(t.Context(), testExecution("lead.created", 5, nil), definition)

	require.Error(t, err)
	assert.Equal(t, "unsupported_node_type:webhook", err.Error())
}

func TestRun_EveryNodeEmitsEnter(t *testing.T) {
	rt, sink := newTestRuntime(&fakeAdapter{})

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"event": "lead.created"}},
			{ID: "d1", Type: models.NodeTypeDelay, Config: map[string]any{"ms": float64(1)}},
			actionNode("a1"),
		},
	}

	_, err := rt.Run(t.Context(), testExecution("lead.created", 5, nil), definition)
	require.NoError(t, err)

	assert.Len(t, sink.byType(events.NodeEnter), 3)
}
