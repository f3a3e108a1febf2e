package worker

import (
	"context"
	"log/slog"

	"github.com/outflowhq/outflow/pkg/eventbus"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// EventWriter appends execution events to durable storage and then publishes
// them on the event bus. Storage is the source of truth; a publish failure is
// logged but never fails the execution.
type EventWriter struct {
	events persistence.EventRepository
	bus    eventbus.EventBus
	logger *slog.Logger
}

func NewEventWriter(events persistence.EventRepository, bus eventbus.EventBus, logger *slog.Logger) *EventWriter {
	return &EventWriter{
		events: events,
		bus:    bus,
		logger: logger.With("module", "event_writer"),
	}
}

func (w *EventWriter) Append(ctx context.Context, event *models.ExecutionEvent) error {
	err := w.events.Append(ctx, event)
	if err != nil {
		return err
	}

	err = w.bus.Publish(ctx, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to publish execution event",
			"execution_id", event.ExecutionID, "event_type", event.EventType, "error", err)
	}

	return nil
}
