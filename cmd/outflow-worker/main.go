package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/outflowhq/outflow/pkg/cmd"
	"github.com/outflowhq/outflow/pkg/executor"
	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/queue"
	"github.com/outflowhq/outflow/pkg/runtime"
	"github.com/outflowhq/outflow/pkg/tracing"
	"github.com/outflowhq/outflow/pkg/worker"
)

const defaultVerificationMaxAgeDays = 30

func main() {
	command := &cli.Command{
		Name:                  "outflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to run queued executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the queue and idempotency ledger",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Number of executions processed in parallel",
				Value:   queue.DefaultConcurrency,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "Make provider adapters simulate success without network calls",
				Sources: cli.EnvVars("DRY_RUN"),
			},
			&cli.IntFlag{
				Name:    "verification-max-age-days",
				Usage:   "Maximum age of live verification evidence before it counts as stale",
				Value:   defaultVerificationMaxAgeDays,
				Sources: cli.EnvVars("VERIFICATION_MAX_AGE_DAYS"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-base-url",
				Usage:   "Base URL of the WhatsApp message API",
				Value:   "https://graph.facebook.com/v19.0",
				Sources: cli.EnvVars("WHATSAPP_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "email-base-url",
				Usage:   "Base URL of the email provider API",
				Sources: cli.EnvVars("EMAIL_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-base-url",
				Usage:   "Base URL of the CRM API",
				Sources: cli.EnvVars("CRM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "janitor-cron",
				Usage:   "Cron expression for the stuck-reservation scan",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("JANITOR_CRON"),
			},
			&cli.StringFlag{
				Name:    "tracing-enabled",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runWorker,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func runWorker(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("outflow-worker").With("workerId", workerID)

	logger.InfoContext(ctx, "Initializing Outflow Worker")

	store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		err := store.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	redisURL := command.String("redis-url")

	q := cmd.NewQueue(ctx, logger, redisURL)
	defer func() {
		err := q.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close queue", "error", err)
		}
	}()

	ledger := cmd.NewLedger(ctx, redisURL)

	reg := cmd.NewRegistry(logger, store, cmd.AdapterConfig{
		DryRun:          command.Bool("dry-run"),
		MaxAgeDays:      int(command.Int("verification-max-age-days")),
		WhatsAppBaseURL: command.String("whatsapp-base-url"),
		EmailBaseURL:    command.String("email-base-url"),
		CRMBaseURL:      command.String("crm-base-url"),
	})

	tracer := tracing.NewNoopTracer()

	if command.String("tracing-enabled") == "true" {
		otlpTracer, err := tracing.NewTracer(ctx, "outflow-worker")
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without export", "error", err)
		} else {
			tracer = otlpTracer
		}
	}

	writer := worker.NewEventWriter(store.EventRepository(), eventBus, logger)
	exec := executor.NewExecutor(reg, ledger, logger)
	rt := runtime.NewRuntime(exec, writer, logger)

	w := worker.NewWorker(store, rt, writer, q, int(command.Int("concurrency")), tracer, logger)

	err := w.Start(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start worker pool", "error", err)

		return err
	}

	janitor := worker.NewJanitor(ledger, worker.DefaultStuckAge, logger)

	err = janitor.Start(ctx, command.String("janitor-cron"))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start janitor", "error", err)

		return err
	}
	defer janitor.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-stop:
		logger.InfoContext(ctx, "Shutdown signal received")
	}

	return nil
}
