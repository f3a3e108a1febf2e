package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// WorkflowRepository handles workflow definition storage.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkflowRepository) DefinitionByVersion(ctx context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	query := `
		SELECT
			id
		  , version
		  , nodes
		FROM workflow_definitions
		WHERE id = $1 AND version = $2
	`

	var (
		definition models.WorkflowDefinition
		nodesJSON  []byte
	)

	err := r.db.QueryRowContext(ctx, query, id, version).Scan(&definition.ID, &definition.Version, &nodesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to query workflow definition: %w", err)
	}

	err = json.Unmarshal(nodesJSON, &definition.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow nodes: %w", err)
	}

	return &definition, nil
}

func (r *WorkflowRepository) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	nodesJSON, err := json.Marshal(definition.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow nodes: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, version, nodes)
		VALUES ($1, $2, $3)
		ON CONFLICT (id, version) DO UPDATE SET nodes = EXCLUDED.nodes
	`

	_, err = r.db.ExecContext(ctx, query, definition.ID, definition.Version, nodesJSON)
	if err != nil {
		return fmt.Errorf("failed to save workflow definition: %w", err)
	}

	return nil
}
