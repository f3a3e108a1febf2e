// Package main provides the Outflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/queue"
	"github.com/outflowhq/outflow/pkg/registry"
	"github.com/outflowhq/outflow/pkg/safety"
	"github.com/outflowhq/outflow/pkg/services"
	"github.com/outflowhq/outflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	queue       queue.Queue
	maxAgeDays  int
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	q queue.Queue,
	maxAgeDays int,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		registry:    reg,
		queue:       q,
		maxAgeDays:  maxAgeDays,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	gate := safety.NewGate(a.logger)
	submission := services.NewSubmission(a.persistence, a.registry, gate, a.queue, a.logger)
	integrationStatus := services.NewIntegrationStatus(
		a.persistence.CredentialRepository(),
		a.persistence.VerificationRepository(),
		a.maxAgeDays,
	)

	handlers := web.NewAPIHandlers(submission, integrationStatus, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Outflow API")
	})

	v1 := app.Group("/v1")
	v1.Post("/executions", handlers.SubmitExecution)
	v1.Get("/executions/:id", handlers.GetExecution)
	v1.Get("/executions/:id/events", handlers.ListExecutionEvents)
	v1.Get("/clients/:clientId/integrations/:provider", handlers.GetIntegrationStatus)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
