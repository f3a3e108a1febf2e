// Package persistence provides the data storage abstraction for workflow
// definitions, executions, the event log, credentials and verifications.
package persistence

import (
	"context"

	"github.com/outflowhq/outflow/pkg/models"
)

// WorkflowRepository reads and stores approved workflow definitions. The
// engine only ever reads a definition by its id+version pair.
type WorkflowRepository interface {
	DefinitionByVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error
}

// ExecutionRepository stores execution rows and their status transitions.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error
	CountQueued(ctx context.Context, tenantID string) (int, error)
}

// EventRepository is the append-only execution event log.
type EventRepository interface {
	Append(ctx context.Context, event *models.ExecutionEvent) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionEvent, error)
}

// CredentialRepository reads stored provider credentials. The engine never
// writes or decrypts secrets itself.
type CredentialRepository interface {
	GetCredential(ctx context.Context, tenantID, clientID, provider, credentialType string) (*models.Credential, error)
	SaveCredential(ctx context.Context, credential *models.Credential) error
}

// VerificationRepository reads integration check outcomes. Only the most
// recent row per (tenant, client, provider, checkType) matters.
type VerificationRepository interface {
	LatestVerification(ctx context.Context, tenantID, clientID, provider, checkType string) (*models.IntegrationVerification, error)
	SaveVerification(ctx context.Context, verification *models.IntegrationVerification) error
}

// Persistence bundles the repositories behind one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	EventRepository() EventRepository
	CredentialRepository() CredentialRepository
	VerificationRepository() VerificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
