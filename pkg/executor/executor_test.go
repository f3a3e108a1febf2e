package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/idempotency"
	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/protocol"
	"github.com/outflowhq/outflow/pkg/registry"
)

// countingAdapter records how often the provider is actually called.
type countingAdapter struct {
	calls    int
	response map[string]any
	err      error
}

func (a *countingAdapter) ID() string {
	return "crm_update"
}

func (a *countingAdapter) ConfigSchema() string {
	return `{"type": "object"}`
}

func (a *countingAdapter) Execute(_ context.Context, _ protocol.ActionInput, _ protocol.ActionContext) (map[string]any, error) {
	a.calls++

	if a.err != nil {
		return nil, a.err
	}

	return a.response, nil
}

func newTestExecutor(adapter protocol.Adapter) (*Executor, idempotency.Ledger) {
	logger := log.WithModule("test")

	reg := registry.NewRegistry(logger)
	reg.Register(adapter)

	ledger := idempotency.NewMemoryLedger()

	return NewExecutor(reg, ledger, logger), ledger
}

func testInput() (protocol.ActionInput, protocol.ActionContext) {
	input := protocol.ActionInput{
		NodeID: "node-1",
		Action: "crm_update",
		Config: map[string]any{"status": "contacted"},
	}
	actionCtx := protocol.ActionContext{
		ExecutionID: "exec-1",
		TenantID:    "tenant-1",
		ClientID:    "client-1",
	}

	return input, actionCtx
}

func TestExecute_DispatchesAndRecords(t *testing.T) {
	adapter := &countingAdapter{response: map[string]any{"delivered": true, "status": "contacted"}}
	exec, _ := newTestExecutor(adapter)

	input, actionCtx := testInput()

	result, err := exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	assert.Equal(t, adapter.response, result)
	assert.Equal(t, 1, adapter.calls)
}

func TestExecute_ReplayReturnsCachedResponse(t *testing.T) {
	adapter := &countingAdapter{response: map[string]any{"delivered": true, "id": "crm-42"}}
	exec, _ := newTestExecutor(adapter)

	input, actionCtx := testInput()

	first, err := exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	second, err := exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, adapter.calls, "provider must not be called again for the same action key")
}

func TestExecute_ConfigChangeIsANewAction(t *testing.T) {
	adapter := &countingAdapter{response: map[string]any{"delivered": true}}
	exec, _ := newTestExecutor(adapter)

	input, actionCtx := testInput()

	_, err := exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	input.Config = map[string]any{"status": "qualified"}

	_, err = exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	assert.Equal(t, 2, adapter.calls)
}

func TestExecute_PriorFailureIsNotRetried(t *testing.T) {
	adapter := &countingAdapter{err: errors.New("crm_send_failed:500")}
	exec, _ := newTestExecutor(adapter)

	input, actionCtx := testInput()

	_, err := exec.Execute(t.Context(), input, actionCtx)
	require.Error(t, err)
	assert.Equal(t, 1, adapter.calls)

	_, err = exec.Execute(t.Context(), input, actionCtx)
	require.Error(t, err)

	assert.True(t, protocol.IsIdempotencyPriorFailure(err))
	assert.Equal(t, "idempotency_prior_failure:crm_send_failed:500", err.Error())
	assert.Equal(t, 1, adapter.calls, "a failed action key must never be re-dispatched")
}

func TestExecute_InFlightReservationSkips(t *testing.T) {
	adapter := &countingAdapter{response: map[string]any{"delivered": true}}
	exec, ledger := newTestExecutor(adapter)

	input, actionCtx := testInput()

	// Simulate a concurrent worker holding the reservation.
	actionKey := idempotency.ActionKey(actionCtx.ExecutionID, input.NodeID, input.Action, input.Config)

	_, err := ledger.Reserve(t.Context(), actionCtx.TenantID, actionCtx.ExecutionID, input.NodeID, actionKey, input.Config)
	require.NoError(t, err)

	result, err := exec.Execute(t.Context(), input, actionCtx)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"skipped": "idempotency_in_progress"}, result)
	assert.Zero(t, adapter.calls)
}

func TestExecute_UnknownAction(t *testing.T) {
	adapter := &countingAdapter{}
	exec, _ := newTestExecutor(adapter)

	input, actionCtx := testInput()
	input.Action = "sms_send"

	_, err := exec.Execute(t.Context(), input, actionCtx)

	require.Error(t, err)
	assert.Equal(t, "unsupported_action:sms_send", err.Error())
	assert.Zero(t, adapter.calls)
}
