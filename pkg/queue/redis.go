package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	jobsKey             = "outflow:queue:jobs"
	processingKey       = "outflow:queue:processing"
	retryKey            = "outflow:queue:retry"
	dedupKeyPrefix      = "outflow:queue:dedup:"
	completedHistoryKey = "outflow:queue:history:completed"
	failedHistoryKey    = "outflow:queue:history:failed"

	popTimeout = 1 * time.Second

	// DedupTTL bounds how long a crashed worker can block resubmission of its
	// execution id. Normal settles release the key immediately.
	DedupTTL = 24 * time.Hour
)

// promoteScript moves retry jobs whose ready-time has passed back onto the
// jobs list. Claim and push happen in one script so two consumers cannot
// promote the same job twice.
var promoteScript = redis.NewScript(`
	local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 100)
	for _, payload in ipairs(due) do
		redis.call('ZREM', KEYS[1], payload)
		redis.call('RPUSH', KEYS[2], payload)
	end
	return #due
`)

// RedisQueue is the production job transport. Jobs live in a Redis list and
// are moved to a processing list while a handler runs, so a worker crash
// leaves the in-flight job visible for operator recovery instead of losing
// it. Delayed retries are parked in a sorted set scored by ready-time and
// survive a restart. Deduplication uses SET NX on a per-execution key held
// until the job reaches a terminal outcome, with a TTL as the crash backstop.
type RedisQueue struct {
	client redis.UniversalClient
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRedisQueue(client redis.UniversalClient, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger.With("module", "redis_queue"),
		stopCh: make(chan struct{}),
	}
}

func dedupKey(executionID string) string {
	return dedupKeyPrefix + executionID
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) (bool, error) {
	accepted, err := q.client.SetNX(ctx, dedupKey(job.ExecutionID), "1", DedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to take dedup key: %w", err)
	}

	if !accepted {
		q.logger.InfoContext(ctx, "duplicate enqueue ignored", "execution_id", job.ExecutionID)

		return false, nil
	}

	job.Attempt = 1

	err = q.push(ctx, job)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (q *RedisQueue) push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.RPush(ctx, jobsKey, data).Err()
	if err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}

	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	q.logger.InfoContext(ctx, "starting queue consumers", "concurrency", concurrency)

	for range concurrency {
		q.wg.Add(1)

		go q.consumeLoop(ctx, handler)
	}

	return nil
}

func (q *RedisQueue) consumeLoop(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			err := q.processNext(ctx, handler)
			if err != nil {
				q.logger.ErrorContext(ctx, "error processing job", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// promoteDueRetries moves every retry whose backoff has elapsed back onto the
// jobs list.
func (q *RedisQueue) promoteDueRetries(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	err := promoteScript.Run(ctx, q.client, []string{retryKey, jobsKey}, now).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.logger.ErrorContext(ctx, "failed to promote due retries", "error", err)
	}
}

func (q *RedisQueue) processNext(ctx context.Context, handler Handler) error {
	q.promoteDueRetries(ctx)

	payload, err := q.client.BLMove(ctx, jobsKey, processingKey, "LEFT", "RIGHT", popTimeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to claim job: %w", err)
	}

	// The handler outcome decides where the job goes next; either way this
	// delivery is done, so the processing entry is removed. Entries left
	// behind by a crashed worker stay visible here for operator recovery.
	defer func() {
		err := q.client.LRem(context.WithoutCancel(ctx), processingKey, 1, payload).Err()
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to clear processing entry", "error", err)
		}
	}()

	job := &Job{}

	err = json.Unmarshal([]byte(payload), job)
	if err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	handlerErr := handler(ctx, job)
	if handlerErr == nil {
		q.settle(ctx, job, completedHistoryKey)

		return nil
	}

	q.logger.WarnContext(ctx, "job handler failed",
		"execution_id", job.ExecutionID, "attempt", job.Attempt, "error", handlerErr)

	if job.Attempt >= MaxAttempts {
		q.settle(ctx, job, failedHistoryKey)

		return nil
	}

	q.scheduleRetry(ctx, job)

	return nil
}

// settle records the terminal outcome in capped history and releases the
// dedup key so the execution id can be enqueued again.
func (q *RedisQueue) settle(ctx context.Context, job *Job, historyKey string) {
	data, err := json.Marshal(job)
	if err == nil {
		pipe := q.client.Pipeline()
		pipe.LPush(ctx, historyKey, data)
		pipe.LTrim(ctx, historyKey, 0, HistoryLimit-1)

		_, err = pipe.Exec(ctx)
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to record job history", "error", err)
		}
	}

	err = q.client.Del(ctx, dedupKey(job.ExecutionID)).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to release dedup key",
			"execution_id", job.ExecutionID, "error", err)
	}
}

// scheduleRetry parks the next attempt in the retry set, scored by the time
// its backoff elapses. The dedup TTL is refreshed so it outlives the wait.
func (q *RedisQueue) scheduleRetry(ctx context.Context, job *Job) {
	job.Attempt++
	delay := Backoff(job.Attempt)

	q.logger.InfoContext(ctx, "scheduling job retry",
		"execution_id", job.ExecutionID, "attempt", job.Attempt, "delay", delay)

	data, err := json.Marshal(job)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to marshal retry job",
			"execution_id", job.ExecutionID, "error", err)

		return
	}

	ready := time.Now().Add(delay).UnixMilli()

	err = q.client.ZAdd(ctx, retryKey, redis.Z{Score: float64(ready), Member: data}).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to park retry job",
			"execution_id", job.ExecutionID, "error", err)

		return
	}

	err = q.client.Expire(ctx, dedupKey(job.ExecutionID), DedupTTL).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to refresh dedup key",
			"execution_id", job.ExecutionID, "error", err)
	}
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	close(q.stopCh)
	q.wg.Wait()

	return nil
}
