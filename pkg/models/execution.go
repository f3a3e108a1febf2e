package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Execution is one concrete run of a workflow version triggered by a specific
// payload. The ID doubles as the queue deduplication key. Status transitions
// are append-driven via events, never mutated destructively.
type Execution struct {
	ID              string          `json:"id"               validate:"required"`
	TenantID        string          `json:"tenant_id"        validate:"required"`
	ClientID        string          `json:"client_id"        validate:"required"`
	WorkflowID      string          `json:"workflow_id"      validate:"required"`
	WorkflowVersion int             `json:"workflow_version" validate:"required,min=1"`
	TriggerType     string          `json:"trigger_type"`
	TriggerPayload  map[string]any  `json:"trigger_payload,omitempty"`
	Status          ExecutionStatus `json:"status"`
	MaxActions      int             `json:"max_actions"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EventLevel is the severity of an execution event.
type EventLevel string

const (
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// ExecutionEvent is one entry in the append-only execution timeline. Ordering
// within an execution is the authoritative record used for replay.
type ExecutionEvent struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	ExecutionID string         `json:"execution_id"`
	Level       EventLevel     `json:"level"`
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
