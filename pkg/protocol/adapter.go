// Package protocol defines the contracts between the runtime, the action
// executor and the provider adapters.
package protocol

import "context"

// ActionInput is the node-local part of an action dispatch.
type ActionInput struct {
	NodeID string
	Action string
	Config map[string]any
}

// ActionContext carries the execution-scoped data every adapter receives.
type ActionContext struct {
	ExecutionID    string
	TenantID       string
	ClientID       string
	TriggerPayload map[string]any
}

// Adapter is one external side-effect channel. Implementations validate their
// payload shape, honor dry-run mode, and call the provider API.
type Adapter interface {
	ID() string
	Execute(ctx context.Context, input ActionInput, actionCtx ActionContext) (map[string]any, error)
	ConfigSchema() string
}
