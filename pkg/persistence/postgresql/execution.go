package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// ExecutionRepository handles execution row storage.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	payloadJSON, err := json.Marshal(execution.TriggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, tenant_id, client_id, workflow_id, workflow_version,
			trigger_type, trigger_payload, status, max_actions, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.TenantID, execution.ClientID,
		execution.WorkflowID, execution.WorkflowVersion,
		execution.TriggerType, payloadJSON, execution.Status,
		execution.MaxActions, execution.CreatedAt, execution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT
			id
		  , tenant_id
		  , client_id
		  , workflow_id
		  , workflow_version
		  , trigger_type
		  , trigger_payload
		  , status
		  , max_actions
		  , created_at
		  , updated_at
		FROM executions
		WHERE id = $1
	`

	var (
		execution   models.Execution
		payloadJSON []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID, &execution.TenantID, &execution.ClientID,
		&execution.WorkflowID, &execution.WorkflowVersion,
		&execution.TriggerType, &payloadJSON, &execution.Status,
		&execution.MaxActions, &execution.CreatedAt, &execution.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to query execution: %w", err)
	}

	err = json.Unmarshal(payloadJSON, &execution.TriggerPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE executions SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (r *ExecutionRepository) CountQueued(ctx context.Context, tenantID string) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM executions WHERE tenant_id = $1 AND status = $2",
		tenantID, models.ExecutionStatusQueued,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued executions: %w", err)
	}

	return count, nil
}
