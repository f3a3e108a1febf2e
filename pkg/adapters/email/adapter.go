// Package email provides the transactional email send adapter.
package email

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
	ProviderName = "email"
	ActionName   = "email_send"

	CredentialAPIKey      = "api_key"
	CredentialFromAddress = "from_address"

	emailPayloadPath = "lead.email"

	defaultTimeoutSeconds = 30
)

// Adapter delivers templated email through an HTTP send API. Same gate order
// as the other channel adapters: payload validation, dry-run, credentials,
// verification freshness, then the network call.
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
		logger:        logger.With("module", "email_adapter"),
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
				"description": "Destination address; falls back to lead.email from the trigger payload"
			},
			"subject": {
				"type": "string",
				"minLength": 1
			},
			"body": {
				"type": "string"
			}
		},
		"required": ["subject"]
	}`
}

func (a *Adapter) Execute(ctx context.Context, input protocol.ActionInput, actionCtx protocol.ActionContext) (map[string]any, error) {
	to, _ := input.Config["to"].(string)
	if to == "" {
		to, _ = payload.LookupString(actionCtx.TriggerPayload, emailPayloadPath)
	}

	subject, _ := input.Config["subject"].(string)

	if to == "" || subject == "" {
		return nil, protocol.NewInvalidActionPayloadError(input.NodeID, input.Action)
	}

	if a.dryRun {
		return map[string]any{
			"delivered": true,
			"dryRun":    true,
			"to":        to,
			"subject":   subject,
		}, nil
	}

	apiKey, err := a.resolver.Resolve(ctx, actionCtx.TenantID, actionCtx.ClientID, ProviderName, CredentialAPIKey)
	if err != nil {
		return nil, err
	}

	fromAddress, err := a.resolver.Resolve(ctx, actionCtx.TenantID, actionCtx.ClientID, ProviderName, CredentialFromAddress)
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
		return nil, protocol.NewIntegrationNotReadyError("email_verification_required")
	}

	body, _ := input.Config["body"].(string)

	return a.send(ctx, apiKey, fromAddress, to, subject, body)
}

func (a *Adapter) send(ctx context.Context, apiKey, fromAddress, to, subject, body string) (map[string]any, error) {
	request := map[string]any{
		"from":    fromAddress,
		"to":      to,
		"subject": subject,
		"body":    body,
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("email send request failed: %w", err)
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

	a.logger.InfoContext(ctx, "email sent", "to", to, "subject", subject)

	return map[string]any{
		"delivered":         true,
		"to":                to,
		"subject":           subject,
		"provider_response": providerResponse,
	}, nil
}
