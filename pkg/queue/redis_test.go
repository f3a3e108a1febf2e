//go:build integration
// +build integration

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/outflowhq/outflow/pkg/log"
)

var redisContainer *tcredis.RedisContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if redisContainer != nil {
		_ = redisContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

func setupRedisQueue(t *testing.T) (*RedisQueue, redis.UniversalClient) {
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

	return NewRedisQueue(client, log.WithModule("test")), client
}

func testJob(executionID string) *Job {
	return &Job{
		ExecutionID:     executionID,
		TenantID:        "tenant-1",
		WorkflowID:      "wf-1",
		WorkflowVersion: 1,
		TriggerType:     "lead.created",
	}
}

func TestRedisEnqueue_DedupKeyCarriesTTL(t *testing.T) {
	q, client := setupRedisQueue(t)

	accepted, err := q.Enqueue(t.Context(), testJob("exec-1"))
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = q.Enqueue(t.Context(), testJob("exec-1"))
	require.NoError(t, err)
	assert.False(t, accepted, "duplicate enqueue must be a no-op")

	ttl, err := client.TTL(t.Context(), dedupKey("exec-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "dedup key must expire eventually so a crash cannot block resubmission forever")
	assert.LessOrEqual(t, ttl, DedupTTL)
}

func TestRedisProcessNext_InFlightJobHeldInProcessingList(t *testing.T) {
	q, client := setupRedisQueue(t)

	_, err := q.Enqueue(t.Context(), testJob("exec-1"))
	require.NoError(t, err)

	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- q.processNext(t.Context(), func(_ context.Context, _ *Job) error {
			<-release

			return nil
		})
	}()

	require.Eventually(t, func() bool {
		n, err := client.LLen(t.Context(), processingKey).Result()

		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "claimed job must sit in the processing list while the handler runs")

	close(release)
	require.NoError(t, <-done)

	n, err := client.LLen(t.Context(), processingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "completed delivery must clear its processing entry")

	exists, err := client.Exists(t.Context(), dedupKey("exec-1")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "dedup key must be released on completion")

	history, err := client.LLen(t.Context(), completedHistoryKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, history)
}

func TestRedisProcessNext_RetryParkedDurably(t *testing.T) {
	q, client := setupRedisQueue(t)

	_, err := q.Enqueue(t.Context(), testJob("exec-1"))
	require.NoError(t, err)

	err = q.processNext(t.Context(), func(_ context.Context, _ *Job) error {
		return context.DeadlineExceeded
	})
	require.NoError(t, err)

	// The failed attempt lands in the retry set, not an in-process timer.
	parked, err := client.ZCard(t.Context(), retryKey).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, parked)

	exists, err := client.Exists(t.Context(), dedupKey("exec-1")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists, "dedup key is held across the backoff wait")

	// Rewind the ready-time so the promotion can be observed without sleeping
	// out the real backoff.
	members, err := client.ZRange(t.Context(), retryKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)

	err = client.ZAdd(t.Context(), retryKey, redis.Z{Score: 0, Member: members[0]}).Err()
	require.NoError(t, err)

	q.promoteDueRetries(t.Context())

	attempts := make(chan int, 1)

	err = q.processNext(t.Context(), func(_ context.Context, job *Job) error {
		attempts <- job.Attempt

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, <-attempts, "promoted job carries the incremented attempt")
}

func TestRedisProcessNext_ExhaustedAttemptsSettleFailed(t *testing.T) {
	q, client := setupRedisQueue(t)

	job := testJob("exec-1")
	job.Attempt = MaxAttempts

	require.NoError(t, q.push(t.Context(), job))

	err := q.processNext(t.Context(), func(_ context.Context, _ *Job) error {
		return context.DeadlineExceeded
	})
	require.NoError(t, err)

	history, err := client.LLen(t.Context(), failedHistoryKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, history)

	parked, err := client.ZCard(t.Context(), retryKey).Result()
	require.NoError(t, err)
	assert.Zero(t, parked, "exhausted jobs must not be parked for another retry")
}
