// Package safety enforces per-submission blast-radius limits. The gate runs
// before an execution is queued; runtime re-checks the action cap per node.
package safety

import (
	"fmt"
	"log/slog"
)

// ApprovalQueueLimit is the maximum number of executions a tenant may have
// queued before new submissions are blocked.
const ApprovalQueueLimit = 20

// DefaultMaxActions caps the action nodes one execution may dispatch when the
// submission does not set its own cap.
const DefaultMaxActions = 5

func NewBlockedError(reason string) error {
	return fmt.Errorf("blocked:%s", reason)
}

// Gate evaluates submission-time safety policies.
type Gate struct {
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	return &Gate{logger: logger.With("module", "safety_gate")}
}

// Check returns a blocked taxonomy error when the submission exceeds a limit.
// The approval-queue check runs first so overload is reported before workflow
// shape problems.
func (g *Gate) Check(tenantID string, pendingApprovals, requestedActions, maxActions int) error {
	if pendingApprovals > ApprovalQueueLimit {
		g.logger.Warn("submission blocked, approval queue overflow",
			"tenant_id", tenantID, "pending_approvals", pendingApprovals)

		return NewBlockedError("approval_queue_overflow")
	}

	if requestedActions > maxActions {
		g.logger.Warn("submission blocked, requested actions exceed cap",
			"tenant_id", tenantID, "requested_actions", requestedActions, "max_actions", maxActions)

		return NewBlockedError("execution_cap_exceeded")
	}

	return nil
}
