// Package runtime walks a workflow's ordered node list for one execution.
// Traversal is a single sequential pass: conditions gate the whole remaining
// run, there is no branching and no backtracking.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outflowhq/outflow/pkg/events"
	"github.com/outflowhq/outflow/pkg/executor"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/payload"
	"github.com/outflowhq/outflow/pkg/protocol"
)

// MaxDelayMs bounds how long a delay node may block its worker.
const MaxDelayMs = 2000

// EventSink receives timeline events in node-visit order.
type EventSink interface {
	Append(ctx context.Context, event *models.ExecutionEvent) error
}

// Result is the terminal outcome of a completed traversal.
type Result struct {
	ActionsExecuted    int
	StoppedByCondition bool
}

type Runtime struct {
	executor *executor.Executor
	sink     EventSink
	logger   *slog.Logger
}

func NewRuntime(exec *executor.Executor, sink EventSink, logger *slog.Logger) *Runtime {
	return &Runtime{
		executor: exec,
		sink:     sink,
		logger:   logger.With("module", "runtime"),
	}
}

// Run traverses the definition's nodes in order. Trigger mismatches warn and
// continue. A false condition with stopOnFalse halts cleanly. Action errors,
// the action cap, and unknown node types abort with an error the caller must
// translate into a failed execution.
func (r *Runtime) Run(ctx context.Context, execution *models.Execution, definition *models.WorkflowDefinition) (*Result, error) {
	result := &Result{}

	for _, node := range definition.Nodes {
		r.emit(ctx, execution, models.EventLevelInfo, events.NodeEnter, map[string]any{
			"node_id":   node.ID,
			"node_type": string(node.Type),
		})

		switch node.Type {
		case models.NodeTypeTrigger:
			r.runTrigger(ctx, execution, node)
		case models.NodeTypeCondition:
			halted := r.runCondition(ctx, execution, node)
			if halted {
				result.StoppedByCondition = true

				return result, nil
			}
		case models.NodeTypeDelay:
			err := r.runDelay(ctx, execution, node)
			if err != nil {
				return result, err
			}
		case models.NodeTypeAction:
			result.ActionsExecuted++
			if result.ActionsExecuted > execution.MaxActions {
				return result, protocol.ErrExecutionCapExceeded
			}

			err := r.runAction(ctx, execution, node)
			if err != nil {
				return result, err
			}
		default:
			return result, protocol.NewUnsupportedNodeTypeError(string(node.Type))
		}
	}

	return result, nil
}

func (r *Runtime) runTrigger(ctx context.Context, execution *models.Execution, node *models.WorkflowNode) {
	expected, _ := node.Config["event"].(string)

	if expected != execution.TriggerType {
		r.logger.WarnContext(ctx, "trigger event mismatch, skipping node",
			"execution_id", execution.ID, "node_id", node.ID,
			"expected", expected, "actual", execution.TriggerType)

		r.emit(ctx, execution, models.EventLevelWarn, events.NodeTriggerSkipped, map[string]any{
			"node_id":  node.ID,
			"expected": expected,
			"actual":   execution.TriggerType,
		})

		return
	}

	r.emit(ctx, execution, models.EventLevelInfo, events.NodeTriggerMatched, map[string]any{
		"node_id": node.ID,
		"event":   expected,
	})
}

// runCondition evaluates the node's operator against the trigger payload and
// reports whether traversal must halt.
func (r *Runtime) runCondition(ctx context.Context, execution *models.Execution, node *models.WorkflowNode) bool {
	operator, _ := node.Config["operator"].(string)
	path, _ := node.Config["path"].(string)
	stopOnFalse, _ := node.Config["stopOnFalse"].(bool)

	passed := evaluateCondition(operator, path, node.Config["value"], execution.TriggerPayload)

	level := models.EventLevelInfo
	if !passed {
		level = models.EventLevelWarn
	}

	r.emit(ctx, execution, level, events.NodeConditionEvaluated, map[string]any{
		"node_id":  node.ID,
		"operator": operator,
		"path":     path,
		"passed":   passed,
	})

	if !passed && stopOnFalse {
		r.emit(ctx, execution, models.EventLevelWarn, events.ExecutionStoppedByCondition, map[string]any{
			"node_id": node.ID,
		})

		return true
	}

	return false
}

// evaluateCondition supports exists, equals, not_equals and is_true. Unknown
// operators evaluate to false.
func evaluateCondition(operator, path string, expected any, triggerPayload map[string]any) bool {
	actual, found := payload.Lookup(triggerPayload, path)

	switch operator {
	case "exists":
		return found
	case "equals":
		return found && fmt.Sprint(actual) == fmt.Sprint(expected)
	case "not_equals":
		return !found || fmt.Sprint(actual) != fmt.Sprint(expected)
	case "is_true":
		value, ok := actual.(bool)

		return found && ok && value
	default:
		return false
	}
}

func (r *Runtime) runDelay(ctx context.Context, execution *models.Execution, node *models.WorkflowNode) error {
	requestedMs := 0

	if raw, ok := node.Config["ms"].(float64); ok {
		requestedMs = int(raw)
	} else if raw, ok := node.Config["ms"].(int); ok {
		requestedMs = raw
	}

	appliedMs := requestedMs
	if appliedMs < 0 {
		appliedMs = 0
	}

	if appliedMs > MaxDelayMs {
		appliedMs = MaxDelayMs
	}

	timer := time.NewTimer(time.Duration(appliedMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	r.emit(ctx, execution, models.EventLevelInfo, events.NodeDelayCompleted, map[string]any{
		"node_id":     node.ID,
		"requestedMs": requestedMs,
		"appliedMs":   appliedMs,
	})

	return nil
}

func (r *Runtime) runAction(ctx context.Context, execution *models.Execution, node *models.WorkflowNode) error {
	action, _ := node.Config["action"].(string)
	if action == "" {
		return protocol.NewInvalidActionError(node.ID)
	}

	config, _ := node.Config["config"].(map[string]any)

	response, err := r.executor.Execute(ctx,
		protocol.ActionInput{
			NodeID: node.ID,
			Action: action,
			Config: config,
		},
		protocol.ActionContext{
			ExecutionID:    execution.ID,
			TenantID:       execution.TenantID,
			ClientID:       execution.ClientID,
			TriggerPayload: execution.TriggerPayload,
		},
	)
	if err != nil {
		return err
	}

	eventPayload := map[string]any{
		"node_id": node.ID,
		"action":  action,
	}
	for key, value := range response {
		eventPayload[key] = value
	}

	r.emit(ctx, execution, models.EventLevelInfo, events.NodeActionExecuted, eventPayload)

	return nil
}

func (r *Runtime) emit(ctx context.Context, execution *models.Execution, level models.EventLevel, eventType string, eventPayload map[string]any) {
	event := &models.ExecutionEvent{
		ID:          uuid.New().String(),
		TenantID:    execution.TenantID,
		ExecutionID: execution.ID,
		Level:       level,
		EventType:   eventType,
		Payload:     eventPayload,
		CreatedAt:   time.Now().UTC(),
	}

	err := r.sink.Append(ctx, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to append execution event",
			"execution_id", execution.ID, "event_type", eventType, "error", err)
	}
}
