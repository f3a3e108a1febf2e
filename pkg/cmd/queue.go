package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/outflowhq/outflow/pkg/idempotency"
	"github.com/outflowhq/outflow/pkg/queue"
)

const redisConnectTimeout = 5 * time.Second

// NewRedisClient connects and pings within a bounded timeout.
func NewRedisClient(ctx context.Context, redisURL string) redis.UniversalClient {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis url: %w", err))
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		panic(fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return client
}

// NewQueue selects the job transport. An empty redis URL yields the
// in-process queue for single-process development.
func NewQueue(ctx context.Context, logger *slog.Logger, redisURL string) queue.Queue {
	if redisURL == "" {
		return queue.NewMemoryQueue(logger)
	}

	return queue.NewRedisQueue(NewRedisClient(ctx, redisURL), logger)
}

// NewLedger selects the idempotency ledger backend, mirroring NewQueue.
func NewLedger(ctx context.Context, redisURL string) idempotency.Ledger {
	if redisURL == "" {
		return idempotency.NewMemoryLedger()
	}

	return idempotency.NewRedisLedger(NewRedisClient(ctx, redisURL))
}
