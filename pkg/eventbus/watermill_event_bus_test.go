package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/channels/gochannel"
	"github.com/outflowhq/outflow/pkg/eventbus"
	"github.com/outflowhq/outflow/pkg/events"
	"github.com/outflowhq/outflow/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *models.ExecutionEvent, 1)

	err := bus.Subscribe(t.Context(), func(_ context.Context, event *models.ExecutionEvent) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	sent := &models.ExecutionEvent{
		ID:          "evt-1",
		TenantID:    "tenant-1",
		ExecutionID: "exec-1",
		Level:       models.EventLevelInfo,
		EventType:   events.ExecutionCompleted,
		Payload:     map[string]any{"actions_executed": float64(2)},
		CreatedAt:   time.Now().UTC(),
	}

	require.NoError(t, bus.Publish(t.Context(), sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.EventType, got.EventType)
		assert.Equal(t, sent.Payload, got.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestWatermillEventBus_MultipleEventsKeepOrder(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan string, 3)

	err := bus.Subscribe(t.Context(), func(_ context.Context, event *models.ExecutionEvent) error {
		received <- event.EventType

		return nil
	})
	require.NoError(t, err)

	for _, eventType := range []string{events.ExecutionStarted, events.NodeEnter, events.ExecutionCompleted} {
		err := bus.Publish(t.Context(), &models.ExecutionEvent{
			ID:          "evt-" + eventType,
			TenantID:    "tenant-1",
			ExecutionID: "exec-1",
			Level:       models.EventLevelInfo,
			EventType:   eventType,
			CreatedAt:   time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	var got []string

	for range 3 {
		select {
		case eventType := <-received:
			got = append(got, eventType)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	assert.Equal(t, []string{events.ExecutionStarted, events.NodeEnter, events.ExecutionCompleted}, got)
}
