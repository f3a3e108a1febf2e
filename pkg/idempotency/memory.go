package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
)

// MemoryLedger is the in-memory ledger used in tests and local development.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*models.IdempotencyRecord),
	}
}

func recordKey(tenantID, actionKey string) string {
	return tenantID + ":" + actionKey
}

func (l *MemoryLedger) Reserve(_ context.Context, tenantID, executionID, nodeID, actionKey string, requestPayload map[string]any) (*ReserveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := recordKey(tenantID, actionKey)

	if existing, ok := l.records[key]; ok {
		return &ReserveResult{
			Reserved:        false,
			Status:          existing.Status,
			ResponsePayload: existing.ResponsePayload,
			ErrorMessage:    existing.ErrorMessage,
		}, nil
	}

	l.records[key] = &models.IdempotencyRecord{
		TenantID:       tenantID,
		ExecutionID:    executionID,
		NodeID:         nodeID,
		ActionKey:      actionKey,
		Status:         models.IdempotencyStatusReserved,
		RequestPayload: requestPayload,
		ReservedAt:     time.Now().UTC(),
	}

	return &ReserveResult{
		Reserved: true,
		Status:   models.IdempotencyStatusReserved,
	}, nil
}

func (l *MemoryLedger) Complete(_ context.Context, tenantID, actionKey string, status models.IdempotencyStatus, responsePayload map[string]any, errorMessage string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[recordKey(tenantID, actionKey)]
	if !ok {
		return ErrRecordNotFound
	}

	if record.Status != models.IdempotencyStatusReserved {
		return ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	record.Status = status
	record.CompletedAt = &now

	switch status {
	case models.IdempotencyStatusExecuted:
		record.ResponsePayload = responsePayload
	case models.IdempotencyStatusFailed:
		record.ErrorMessage = errorMessage
	}

	return nil
}

func (l *MemoryLedger) StuckReservations(_ context.Context, olderThan time.Duration) ([]*models.IdempotencyRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	stuck := make([]*models.IdempotencyRecord, 0)

	for _, record := range l.records {
		if record.Status == models.IdempotencyStatusReserved && record.ReservedAt.Before(cutoff) {
			stuck = append(stuck, record)
		}
	}

	return stuck, nil
}
