// Package postgresql provides PostgreSQL persistence for the execution engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db               *sql.DB
	logger           *slog.Logger
	workflowRepo     *WorkflowRepository
	executionRepo    *ExecutionRepository
	eventRepo        *EventRepository
	credentialRepo   *CredentialRepository
	verificationRepo *VerificationRepository
}

// NewPersistence connects, runs migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:               database,
		logger:           logger,
		workflowRepo:     &WorkflowRepository{db: database, logger: logger},
		executionRepo:    &ExecutionRepository{db: database, logger: logger},
		eventRepo:        &EventRepository{db: database, logger: logger},
		credentialRepo:   &CredentialRepository{db: database, logger: logger},
		verificationRepo: &VerificationRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return p.eventRepo
}

func (p *Persistence) CredentialRepository() persistence.CredentialRepository {
	return p.credentialRepo
}

func (p *Persistence) VerificationRepository() persistence.VerificationRepository {
	return p.verificationRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
