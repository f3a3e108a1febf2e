package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// ExecutionRepository stores one JSON file per execution.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

func (r *ExecutionRepository) path(id string) string {
	return filepath.Join(r.root, "executions", id+".json")
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	return writeJSONFile(r.path(execution.ID), execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution := &models.Execution{}

	found, err := readJSONFile(r.path(id), execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}

func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution := &models.Execution{}

	found, err := readJSONFile(r.path(id), execution)
	if err != nil {
		return err
	}

	if !found {
		return persistence.ErrExecutionNotFound
	}

	execution.Status = status
	execution.UpdatedAt = time.Now().UTC()

	return writeJSONFile(r.path(id), execution)
}

func (r *ExecutionRepository) CountQueued(_ context.Context, tenantID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(r.root, "executions"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, err
	}

	count := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		execution := &models.Execution{}

		found, err := readJSONFile(filepath.Join(r.root, "executions", entry.Name()), execution)
		if err != nil || !found {
			continue
		}

		if execution.TenantID == tenantID && execution.Status == models.ExecutionStatusQueued {
			count++
		}
	}

	return count, nil
}
