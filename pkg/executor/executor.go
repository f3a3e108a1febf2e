// Package executor runs single provider actions behind the idempotency
// ledger. Every dispatch reserves its action key first; replays are answered
// from the ledger without touching the provider.
package executor

import (
	"context"
	"log/slog"

	"github.com/outflowhq/outflow/pkg/idempotency"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/protocol"
	"github.com/outflowhq/outflow/pkg/registry"
)

type Executor struct {
	registry *registry.Registry
	ledger   idempotency.Ledger
	logger   *slog.Logger
}

func NewExecutor(reg *registry.Registry, ledger idempotency.Ledger, logger *slog.Logger) *Executor {
	return &Executor{
		registry: reg,
		ledger:   ledger,
		logger:   logger.With("module", "executor"),
	}
}

// Execute dispatches one action exactly once per action key.
//
// A prior executed record returns its stored response verbatim. A prior failed
// record re-raises the stored error without re-dispatching. A still-reserved
// record means another worker holds the action; the caller gets a skipped
// marker and must not treat it as delivery.
func (e *Executor) Execute(ctx context.Context, input protocol.ActionInput, actionCtx protocol.ActionContext) (map[string]any, error) {
	adapter, err := e.registry.Resolve(input.Action)
	if err != nil {
		return nil, err
	}

	actionKey := idempotency.ActionKey(actionCtx.ExecutionID, input.NodeID, input.Action, input.Config)

	reservation, err := e.ledger.Reserve(ctx, actionCtx.TenantID, actionCtx.ExecutionID, input.NodeID, actionKey, input.Config)
	if err != nil {
		return nil, err
	}

	if !reservation.Reserved {
		switch reservation.Status {
		case models.IdempotencyStatusExecuted:
			e.logger.InfoContext(ctx, "action already executed, returning recorded response",
				"execution_id", actionCtx.ExecutionID, "node_id", input.NodeID, "action_key", actionKey)

			return reservation.ResponsePayload, nil
		case models.IdempotencyStatusFailed:
			return nil, protocol.NewIdempotencyPriorFailureError(reservation.ErrorMessage)
		default:
			e.logger.WarnContext(ctx, "action key still reserved by another worker",
				"execution_id", actionCtx.ExecutionID, "node_id", input.NodeID, "action_key", actionKey)

			return map[string]any{"skipped": "idempotency_in_progress"}, nil
		}
	}

	response, err := adapter.Execute(ctx, input, actionCtx)
	if err != nil {
		completeErr := e.ledger.Complete(ctx, actionCtx.TenantID, actionKey, models.IdempotencyStatusFailed, nil, err.Error())
		if completeErr != nil {
			e.logger.ErrorContext(ctx, "failed to record action failure",
				"action_key", actionKey, "error", completeErr)
		}

		return nil, err
	}

	err = e.ledger.Complete(ctx, actionCtx.TenantID, actionKey, models.IdempotencyStatusExecuted, response, "")
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to record action success",
			"action_key", actionKey, "error", err)
	}

	return response, nil
}
