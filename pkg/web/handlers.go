// Package web provides the HTTP surface for submitting and inspecting
// executions.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/services"
)

type APIHandlers struct {
	submission        *services.Submission
	integrationStatus *services.IntegrationStatus
	validator         *validator.Validate
}

func NewAPIHandlers(
	submission *services.Submission,
	integrationStatus *services.IntegrationStatus,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		submission:        submission,
		integrationStatus: integrationStatus,
		validator:         validator,
	}
}

// SubmitExecution accepts a run request and returns 202 once it is queued.
// The actual run happens asynchronously on the worker pool.
func (h *APIHandlers) SubmitExecution(c fiber.Ctx) error {
	var req SubmitExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.submission.Submit(c.Context(), services.SubmitRequest{
		WorkflowID:      req.WorkflowID,
		WorkflowVersion: req.WorkflowVersion,
		ExecutionID:     req.ExecutionID,
		TenantID:        req.TenantID,
		ClientID:        req.ClientID,
		TriggerType:     req.TriggerType,
		TriggerPayload:  req.TriggerPayload,
		MaxActions:      req.MaxActions,
	})
	if err != nil {
		return handleSubmissionError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": execution.ID,
		"status":       execution.Status,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.submission.FetchExecution(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// ListExecutionEvents returns the ordered timeline for one execution.
func (h *APIHandlers) ListExecutionEvents(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	events, err := h.submission.ListEvents(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_id": id,
		"events":       events,
	})
}

// GetIntegrationStatus reports channel readiness plus fix suggestions so an
// operator can resolve a blocked channel.
func (h *APIHandlers) GetIntegrationStatus(c fiber.Ctx) error {
	tenantID := c.Query("tenant_id")
	clientID := c.Params("clientId")
	provider := c.Params("provider")

	if tenantID == "" || clientID == "" || provider == "" {
		return badRequest(c, "tenant_id, client id and provider are required")
	}

	report, err := h.integrationStatus.Evaluate(c.Context(), tenantID, clientID, provider)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storageCheck, ok := h.submission.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Outflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Outflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"storage": storageCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
