// Package file provides file-based persistence for local development and
// tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/outflowhq/outflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	executionRepo    *ExecutionRepository
	eventRepo        *EventRepository
	credentialRepo   *CredentialRepository
	verificationRepo *VerificationRepository
}

// NewPersistence creates file-based persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     &WorkflowRepository{root: cleanRoot},
		executionRepo:    &ExecutionRepository{root: cleanRoot},
		eventRepo:        &EventRepository{root: cleanRoot},
		credentialRepo:   &CredentialRepository{root: cleanRoot},
		verificationRepo: &VerificationRepository{root: cleanRoot},
	}
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

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs no work for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func writeJSONFile(path string, v any) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}
