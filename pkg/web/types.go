package web

// SubmitExecutionRequest is the POST /v1/executions body.
type SubmitExecutionRequest struct {
	WorkflowID      string         `json:"workflow_id"      validate:"required"`
	WorkflowVersion int            `json:"workflow_version" validate:"required,min=1"`
	ExecutionID     string         `json:"execution_id"`
	TenantID        string         `json:"tenant_id"        validate:"required"`
	ClientID        string         `json:"client_id"        validate:"required"`
	TriggerType     string         `json:"trigger_type"     validate:"required"`
	TriggerPayload  map[string]any `json:"trigger_payload"`
	MaxActions      int            `json:"max_actions"      validate:"omitempty,min=1"`
}
