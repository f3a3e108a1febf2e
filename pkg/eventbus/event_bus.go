// Package eventbus broadcasts execution events to external consumers.
package eventbus

import (
	"context"

	"github.com/outflowhq/outflow/pkg/models"
)

// EventHandler processes one execution event delivered by a subscription.
type EventHandler func(ctx context.Context, event *models.ExecutionEvent) error

// EventBus publishes execution events and lets consumers subscribe to the
// stream. Cross-execution ordering is not guaranteed.
type EventBus interface {
	Publish(ctx context.Context, event *models.ExecutionEvent) error
	Subscribe(ctx context.Context, handler EventHandler) error
	Close() error
}
