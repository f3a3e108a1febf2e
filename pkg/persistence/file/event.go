package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/outflowhq/outflow/pkg/models"
)

// EventRepository appends events to one JSON file per execution. The on-disk
// order is the authoritative timeline.
type EventRepository struct {
	root string
	mu   sync.Mutex
}

func (r *EventRepository) path(executionID string) string {
	return filepath.Join(r.root, "events", executionID+".json")
}

func (r *EventRepository) Append(_ context.Context, event *models.ExecutionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	events := make([]*models.ExecutionEvent, 0)

	_, err := readJSONFile(r.path(event.ExecutionID), &events)
	if err != nil {
		return err
	}

	events = append(events, event)

	return writeJSONFile(r.path(event.ExecutionID), events)
}

func (r *EventRepository) ListByExecution(_ context.Context, executionID string) ([]*models.ExecutionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]*models.ExecutionEvent, 0)

	_, err := readJSONFile(r.path(executionID), &events)
	if err != nil {
		return nil, err
	}

	return events, nil
}
