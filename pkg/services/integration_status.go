package services

import (
	"context"
	"time"

	"github.com/outflowhq/outflow/pkg/integration"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// providerIdentityFields lists the credential types a provider needs before
// its channel counts as connected and verified.
var providerIdentityFields = map[string][2]string{
	"whatsapp": {"access_token", "phone_number_id"},
	"email":    {"api_key", "from_address"},
}

// IntegrationStatus evaluates the readiness contract for one provider channel
// and maps failed sub-conditions to remediation suggestions.
type IntegrationStatus struct {
	credentials   persistence.CredentialRepository
	verifications persistence.VerificationRepository
	maxAgeDays    int
}

type IntegrationReport struct {
	Provider    string                   `json:"provider"`
	Status      integration.Status       `json:"status"`
	Suggestions []integration.Suggestion `json:"suggestions"`
}

func NewIntegrationStatus(
	credentials persistence.CredentialRepository,
	verifications persistence.VerificationRepository,
	maxAgeDays int,
) *IntegrationStatus {
	return &IntegrationStatus{
		credentials:   credentials,
		verifications: verifications,
		maxAgeDays:    maxAgeDays,
	}
}

func (s *IntegrationStatus) Evaluate(ctx context.Context, tenantID, clientID, provider string) (*IntegrationReport, error) {
	fields, ok := providerIdentityFields[provider]
	if !ok {
		// Providers without a readiness contract (CRM) are always ready.
		return &IntegrationReport{
			Provider: provider,
			Status: integration.Status{
				Connected:      true,
				Verified:       true,
				TestSendPassed: true,
				Ready:          true,
			},
			Suggestions: []integration.Suggestion{},
		}, nil
	}

	hasCredential, err := s.hasCredential(ctx, tenantID, clientID, provider, fields[0])
	if err != nil {
		return nil, err
	}

	hasIdentity, err := s.hasCredential(ctx, tenantID, clientID, provider, fields[1])
	if err != nil {
		return nil, err
	}

	verification, err := s.verifications.LatestVerification(ctx, tenantID, clientID, provider, models.CheckTypeTestSendLive)
	if err != nil && !persistence.IsVerificationNotFound(err) {
		return nil, err
	}

	inputs := integration.Inputs{
		HasCredential: hasCredential,
		HasIdentity:   hasIdentity,
		Verification:  verification,
		MaxAgeDays:    s.maxAgeDays,
		Now:           time.Now().UTC(),
	}

	status := integration.Evaluate(inputs)

	return &IntegrationReport{
		Provider:    provider,
		Status:      status,
		Suggestions: integration.Suggestions(provider, inputs, status),
	}, nil
}

func (s *IntegrationStatus) hasCredential(ctx context.Context, tenantID, clientID, provider, credentialType string) (bool, error) {
	credential, err := s.credentials.GetCredential(ctx, tenantID, clientID, provider, credentialType)
	if err != nil {
		if persistence.IsCredentialNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return credential.EncryptedSecret != "", nil
}
