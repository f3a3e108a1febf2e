package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/outflowhq/outflow/pkg/cmd"
	"github.com/outflowhq/outflow/pkg/log"
)

const defaultPort = 9091

const defaultVerificationMaxAgeDays = 30

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "outflow-api",
		Usage:                 "Submit and inspect workflow executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the execution queue",
				Sources: cli.EnvVars("REDIS_URL"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Outflow API")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			reg := cmd.NewRegistry(logger, store, cmd.AdapterConfig{
				DryRun:          command.Bool("dry-run"),
				MaxAgeDays:      int(command.Int("verification-max-age-days")),
				WhatsAppBaseURL: command.String("whatsapp-base-url"),
				EmailBaseURL:    command.String("email-base-url"),
				CRMBaseURL:      command.String("crm-base-url"),
			})

			q := cmd.NewQueue(ctx, logger, command.String("redis-url"))

			defer func() {
				err := q.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close queue", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				store,
				reg,
				q,
				int(command.Int("verification-max-age-days")),
			)

			err := api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
