package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "outflow:idempotency:"
const indexKey = keyPrefix + "index"

// reserveScript inserts a record if absent and adds its key to the index set
// in the same script, so a crash can never leave a reserved record the
// stuck-reservation scan cannot see. Returns the existing record when the key
// is already taken, empty string on a fresh reservation.
var reserveScript = redis.NewScript(`
	local inserted = redis.call('SETNX', KEYS[1], ARGV[1])
	if inserted == 1 then
		redis.call('SADD', KEYS[2], KEYS[1])
		return ''
	end
	return redis.call('GET', KEYS[1])
`)

// completeScript transitions a reserved record to its terminal state. The
// status check and the write happen inside one script so two concurrent
// completions cannot both succeed.
var completeScript = redis.NewScript(`
	local raw = redis.call('GET', KEYS[1])
	if not raw then
		return 'not_found'
	end
	local rec = cjson.decode(raw)
	if rec['status'] ~= 'reserved' then
		return 'conflict'
	end
	rec['status'] = ARGV[1]
	if ARGV[1] == 'executed' then
		rec['response_payload'] = cjson.decode(ARGV[2])
	else
		rec['error_message'] = ARGV[2]
	end
	rec['completed_at'] = ARGV[3]
	redis.call('SET', KEYS[1], cjson.encode(rec))
	return 'ok'
`)

// RedisLedger stores idempotency records in Redis. Reservation is a single
// SET NX, so the insert-if-absent is atomic at the storage layer. Records are
// never expired or deleted.
type RedisLedger struct {
	client redis.UniversalClient
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

func redisRecordKey(tenantID, actionKey string) string {
	return keyPrefix + tenantID + ":" + actionKey
}

func (l *RedisLedger) Reserve(ctx context.Context, tenantID, executionID, nodeID, actionKey string, requestPayload map[string]any) (*ReserveResult, error) {
	record := &models.IdempotencyRecord{
		TenantID:       tenantID,
		ExecutionID:    executionID,
		NodeID:         nodeID,
		ActionKey:      actionKey,
		Status:         models.IdempotencyStatusReserved,
		RequestPayload: requestPayload,
		ReservedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	key := redisRecordKey(tenantID, actionKey)

	raw, err := reserveScript.Run(ctx, l.client, []string{key, indexKey}, data).Text()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	if raw == "" {
		return &ReserveResult{
			Reserved: true,
			Status:   models.IdempotencyStatusReserved,
		}, nil
	}

	existing := &models.IdempotencyRecord{}

	err = json.Unmarshal([]byte(raw), existing)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}

	return &ReserveResult{
		Reserved:        false,
		Status:          existing.Status,
		ResponsePayload: existing.ResponsePayload,
		ErrorMessage:    existing.ErrorMessage,
	}, nil
}

func (l *RedisLedger) Complete(ctx context.Context, tenantID, actionKey string, status models.IdempotencyStatus, responsePayload map[string]any, errorMessage string) error {
	var detail string

	if status == models.IdempotencyStatusExecuted {
		data, err := json.Marshal(responsePayload)
		if err != nil {
			return fmt.Errorf("failed to marshal response payload: %w", err)
		}

		detail = string(data)
	} else {
		detail = errorMessage
	}

	completedAt := time.Now().UTC().Format(time.RFC3339Nano)

	result, err := completeScript.Run(ctx, l.client,
		[]string{redisRecordKey(tenantID, actionKey)},
		string(status), detail, completedAt,
	).Text()
	if err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}

	switch result {
	case "ok":
		return nil
	case "not_found":
		return ErrRecordNotFound
	case "conflict":
		return ErrAlreadyCompleted
	default:
		return fmt.Errorf("unexpected completion result: %s", result)
	}
}

func (l *RedisLedger) StuckReservations(ctx context.Context, olderThan time.Duration) ([]*models.IdempotencyRecord, error) {
	keys, err := l.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list idempotency keys: %w", err)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	stuck := make([]*models.IdempotencyRecord, 0)

	for _, key := range keys {
		raw, err := l.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		record := &models.IdempotencyRecord{}

		err = json.Unmarshal(raw, record)
		if err != nil {
			continue
		}

		if record.Status == models.IdempotencyStatusReserved && record.ReservedAt.Before(cutoff) {
			stuck = append(stuck, record)
		}
	}

	return stuck, nil
}
