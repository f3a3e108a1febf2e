//go:build integration
// +build integration

package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/outflowhq/outflow/pkg/models"
)

var redisContainer *tcredis.RedisContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if redisContainer != nil {
		_ = redisContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

func setupRedisLedger(t *testing.T) (*RedisLedger, redis.UniversalClient) {
	t.Helper()

	ctx := context.Background()

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error
		redisContainer, err = tcredis.Run(ctx, "redis:7-alpine")
		require.NoError(t, err)
	}

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(options)
	require.NoError(t, client.FlushAll(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLedger(client), client
}

func TestRedisReserve_IndexesRecordAtomically(t *testing.T) {
	ledger, client := setupRedisLedger(t)

	result, err := ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-1", "key-1", map[string]any{"template": "welcome"})
	require.NoError(t, err)
	assert.True(t, result.Reserved)

	// The record is in the index set the moment the reservation exists, so
	// the stuck-reservation scan can always see it.
	members, err := client.SMembers(t.Context(), indexKey).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, redisRecordKey("tenant-1", "key-1"), members[0])

	second, err := ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-1", "key-1", nil)
	require.NoError(t, err)
	assert.False(t, second.Reserved)
	assert.Equal(t, models.IdempotencyStatusReserved, second.Status)
}

func TestRedisComplete_ReplaysRecordedOutcome(t *testing.T) {
	ledger, _ := setupRedisLedger(t)

	_, err := ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-1", "key-1", nil)
	require.NoError(t, err)

	response := map[string]any{"delivered": true}

	err = ledger.Complete(t.Context(), "tenant-1", "key-1", models.IdempotencyStatusExecuted, response, "")
	require.NoError(t, err)

	replay, err := ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-1", "key-1", nil)
	require.NoError(t, err)
	assert.False(t, replay.Reserved)
	assert.Equal(t, models.IdempotencyStatusExecuted, replay.Status)
	assert.Equal(t, response, replay.ResponsePayload)

	err = ledger.Complete(t.Context(), "tenant-1", "key-1", models.IdempotencyStatusFailed, nil, "late failure")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestRedisStuckReservations(t *testing.T) {
	ledger, _ := setupRedisLedger(t)

	_, err := ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-1", "key-stuck", nil)
	require.NoError(t, err)

	_, err = ledger.Reserve(t.Context(), "tenant-1", "exec-1", "node-2", "key-done", nil)
	require.NoError(t, err)

	err = ledger.Complete(t.Context(), "tenant-1", "key-done", models.IdempotencyStatusExecuted, map[string]any{}, "")
	require.NoError(t, err)

	stuck, err := ledger.StuckReservations(t.Context(), -time.Second)
	require.NoError(t, err)

	require.Len(t, stuck, 1)
	assert.Equal(t, "key-stuck", stuck[0].ActionKey)
}
