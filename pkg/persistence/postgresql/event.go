package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/outflowhq/outflow/pkg/models"
)

// EventRepository handles the append-only execution event log.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EventRepository) Append(ctx context.Context, event *models.ExecutionEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO execution_events (id, tenant_id, execution_id, level, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.ExecutionID,
		event.Level, event.EventType, payloadJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution event: %w", err)
	}

	return nil
}

func (r *EventRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ExecutionEvent, error) {
	query := `
		SELECT
			id
		  , tenant_id
		  , execution_id
		  , level
		  , event_type
		  , payload
		  , created_at
		FROM execution_events
		WHERE execution_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution events: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.ExecutionEvent, 0)

	for rows.Next() {
		var (
			event       models.ExecutionEvent
			payloadJSON []byte
		)

		err := rows.Scan(&event.ID, &event.TenantID, &event.ExecutionID,
			&event.Level, &event.EventType, &payloadJSON, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution event: %w", err)
		}

		err = json.Unmarshal(payloadJSON, &event.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution events: %w", err)
	}

	return events, nil
}
