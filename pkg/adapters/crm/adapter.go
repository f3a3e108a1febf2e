// Package crm provides the CRM lead-status update adapter. Unlike the channel
// adapters it carries no tenant credential and no readiness gate: the CRM is
// an internal system and is always ready.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/outflowhq/outflow/pkg/payload"
	"github.com/outflowhq/outflow/pkg/protocol"
)

const (
	ProviderName = "crm"
	ActionName   = "crm_update"

	leadIDPayloadPath = "lead.id"

	defaultTimeoutSeconds = 30
)

type Adapter struct {
	httpClient *http.Client
	baseURL    string
	dryRun     bool
	logger     *slog.Logger
}

type Config struct {
	BaseURL string
	DryRun  bool
}

func NewAdapter(config Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		baseURL:    config.BaseURL,
		dryRun:     config.DryRun,
		logger:     logger.With("module", "crm_adapter"),
	}
}

func (a *Adapter) ID() string {
	return ActionName
}

func (a *Adapter) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"status": {
				"type": "string",
				"minLength": 1,
				"description": "New lead status value"
			},
			"leadId": {
				"type": "string",
				"description": "Lead identifier; falls back to lead.id from the trigger payload"
			}
		},
		"required": ["status"]
	}`
}

func (a *Adapter) Execute(ctx context.Context, input protocol.ActionInput, actionCtx protocol.ActionContext) (map[string]any, error) {
	status, _ := input.Config["status"].(string)
	if status == "" {
		return nil, protocol.NewInvalidActionPayloadError(input.NodeID, input.Action)
	}

	leadID, _ := input.Config["leadId"].(string)
	if leadID == "" {
		leadID, _ = payload.LookupString(actionCtx.TriggerPayload, leadIDPayloadPath)
	}

	if a.dryRun {
		return map[string]any{
			"delivered": true,
			"dryRun":    true,
			"leadId":    leadID,
			"status":    status,
		}, nil
	}

	return a.update(ctx, leadID, status)
}

func (a *Adapter) update(ctx context.Context, leadID, status string) (map[string]any, error) {
	request := map[string]any{
		"lead_id": leadID,
		"status":  status,
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/leads/status", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create update request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm update request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, protocol.NewSendFailedError(ProviderName, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read update response: %w", err)
	}

	var providerResponse map[string]any

	err = json.Unmarshal(respBody, &providerResponse)
	if err != nil {
		providerResponse = map[string]any{}
	}

	a.logger.InfoContext(ctx, "CRM lead updated", "lead_id", leadID, "status", status)

	return map[string]any{
		"delivered":         true,
		"leadId":            leadID,
		"status":            status,
		"provider_response": providerResponse,
	}, nil
}
