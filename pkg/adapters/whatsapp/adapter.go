// Package whatsapp provides the WhatsApp message-send adapter.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/outflowhq/outflow/pkg/adapters"
	"github.com/outflowhq/outflow/pkg/integration"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/payload"
	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/protocol"
)

const (
	ProviderName = "whatsapp"
	ActionName   = "whatsapp_send"

	CredentialAccessToken   = "access_token"
	CredentialPhoneNumberID = "phone_number_id"

	phonePayloadPath = "lead.phone"

	defaultTimeoutSeconds = 30
)

// Adapter sends WhatsApp template messages. Readiness gates run before any
// network call: credentials must resolve and the integration contract must be
// fresh. Dry-run short-circuits before credential lookup.
type Adapter struct {
	resolver      *adapters.CredentialResolver
	verifications persistence.VerificationRepository
	httpClient    *http.Client
	baseURL       string
	dryRun        bool
	maxAgeDays    int
	logger        *slog.Logger
}

type Config struct {
	BaseURL    string
	DryRun     bool
	MaxAgeDays int
}

func NewAdapter(
	resolver *adapters.CredentialResolver,
	verifications persistence.VerificationRepository,
	config Config,
	logger *slog.Logger,
) *Adapter {
	return &Adapter{
		resolver:      resolver,
		verifications: verifications,
		httpClient:    &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		baseURL:       config.BaseURL,
		dryRun:        config.DryRun,
		maxAgeDays:    config.MaxAgeDays,
		logger:        logger.With("module", "whatsapp_adapter"),
	}
}

func (a *Adapter) ID() string {
	return ActionName
}

func (a *Adapter) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"to": {
				"type": "string",
				"description": "Destination phone number; falls back to lead.phone from the trigger payload"
			},
			"template": {
				"type": "string",
				"minLength": 1,
				"description": "Name of the approved message template"
			}
		},
		"required": ["template"]
	}`
}

func (a *Adapter) Execute(ctx context.Context, input protocol.ActionInput, actionCtx protocol.ActionContext) (map[string]any, error) {
	to, _ := input.Config["to"].(string)
	if to == "" {
		to, _ = payload.LookupString(actionCtx.TriggerPayload, phonePayloadPath)
	}

	template, _ := input.Config["template"].(string)

	if to == "" || template == "" {
		return nil, protocol.NewInvalidActionPayloadError(input.NodeID, input.Action)
	}

	if a.dryRun {
		return map[string]any{
			"delivered": true,
			"dryRun":    true,
			"to":        to,
			"template":  template,
		}, nil
	}

	accessToken, err := a.resolver.Resolve(ctx, actionCtx.TenantID, actionCtx.ClientID, ProviderName, CredentialAccessToken)
	if err != nil {
		return nil, err
	}

	phoneNumberID, err := a.resolver.Resolve(ctx, actionCtx.TenantID, actionCtx.ClientID, ProviderName, CredentialPhoneNumberID)
	if err != nil {
		return nil, err
	}

	verification, err := a.verifications.LatestVerification(ctx, actionCtx.TenantID, actionCtx.ClientID, ProviderName, models.CheckTypeTestSendLive)
	if err != nil && !persistence.IsVerificationNotFound(err) {
		return nil, err
	}

	status := integration.Evaluate(integration.Inputs{
		HasCredential: true,
		HasIdentity:   true,
		Verification:  verification,
		MaxAgeDays:    a.maxAgeDays,
		Now:           time.Now().UTC(),
	})
	if !status.Ready {
		return nil, protocol.NewIntegrationNotReadyError("whatsapp_verification_required")
	}

	return a.send(ctx, accessToken, phoneNumberID, to, template)
}

func (a *Adapter) send(ctx context.Context, accessToken, phoneNumberID, to, template string) (map[string]any, error) {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name": template,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", a.baseURL, phoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp send request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, protocol.NewSendFailedError(ProviderName, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read send response: %w", err)
	}

	var providerResponse map[string]any

	err = json.Unmarshal(respBody, &providerResponse)
	if err != nil {
		providerResponse = map[string]any{}
	}

	a.logger.InfoContext(ctx, "WhatsApp message sent", "to", to, "template", template)

	return map[string]any{
		"delivered":         true,
		"to":                to,
		"template":          template,
		"provider_response": providerResponse,
	}, nil
}
