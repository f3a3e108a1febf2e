package models

import "time"

// IdempotencyStatus is the lifecycle state of an idempotency record.
type IdempotencyStatus string

const (
	IdempotencyStatusReserved IdempotencyStatus = "reserved"
	IdempotencyStatusExecuted IdempotencyStatus = "executed"
	IdempotencyStatusFailed   IdempotencyStatus = "failed"
)

// IdempotencyRecord is the durable ledger entry for a single action-node side
// effect. A record transitions exactly once from reserved to executed or
// failed and is never deleted; a record stuck in reserved marks a crash
// between reservation and completion and must be inspected by an operator,
// never silently retried.
type IdempotencyRecord struct {
	TenantID        string            `json:"tenant_id"`
	ExecutionID     string            `json:"execution_id"`
	NodeID          string            `json:"node_id"`
	ActionKey       string            `json:"action_key"`
	Status          IdempotencyStatus `json:"status"`
	RequestPayload  map[string]any    `json:"request_payload,omitempty"`
	ResponsePayload map[string]any    `json:"response_payload,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	ReservedAt      time.Time         `json:"reserved_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// SafetyPolicy is the request-scoped safety input, evaluated once per
// submission and again per executed action node. Not persisted as an entity.
type SafetyPolicy struct {
	MaxActions       int `json:"max_actions"`
	PendingApprovals int `json:"pending_approvals"`
	RequestedActions int `json:"requested_actions"`
}
