package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// WorkflowRepository stores one JSON file per definition version.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

func (r *WorkflowRepository) path(id string, version int) string {
	return filepath.Join(r.root, "workflows", fmt.Sprintf("%s@v%d.json", id, version))
}

func (r *WorkflowRepository) DefinitionByVersion(_ context.Context, id string, version int) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definition := &models.WorkflowDefinition{}

	found, err := readJSONFile(r.path(id, version), definition)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrWorkflowNotFound
	}

	return definition, nil
}

func (r *WorkflowRepository) SaveDefinition(_ context.Context, definition *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSONFile(r.path(definition.ID, definition.Version), definition)
}
