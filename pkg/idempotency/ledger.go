package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
)

var (
	// ErrRecordNotFound indicates a completion for an unknown action key.
	ErrRecordNotFound = errors.New("idempotency record not found")

	// ErrAlreadyCompleted indicates a second completion of the same record.
	// Completing twice is a programming error and is always rejected.
	ErrAlreadyCompleted = errors.New("idempotency record already completed")
)

// ReserveResult is the outcome of a reservation attempt. When Reserved is
// false, Status tells the caller what already happened: executed carries the
// cached response, failed carries the recorded error, reserved means another
// attempt is still in flight.
type ReserveResult struct {
	Reserved        bool
	Status          models.IdempotencyStatus
	ResponsePayload map[string]any
	ErrorMessage    string
}

// Ledger is the reservation/completion store. Reserve must be a single atomic
// insert-if-absent at the storage layer, never a read-then-write pair: two
// concurrent attempts must not both observe "no record".
type Ledger interface {
	Reserve(ctx context.Context, tenantID, executionID, nodeID, actionKey string, requestPayload map[string]any) (*ReserveResult, error)
	Complete(ctx context.Context, tenantID, actionKey string, status models.IdempotencyStatus, responsePayload map[string]any, errorMessage string) error

	// StuckReservations lists records still reserved after the threshold: a
	// crash between reservation and completion leaves the record permanently
	// reserved for an operator to inspect, never silently retried.
	StuckReservations(ctx context.Context, olderThan time.Duration) ([]*models.IdempotencyRecord, error)
}
