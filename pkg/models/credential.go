package models

import "time"

// Credential is a stored provider secret for one tenant/client pair. The
// engine treats credentials as read-only; decryption is delegated to the
// secret-unwrapping collaborator.
type Credential struct {
	TenantID        string    `json:"tenant_id"`
	ClientID        string    `json:"client_id"`
	Provider        string    `json:"provider"`
	CredentialType  string    `json:"credential_type"`
	EncryptedSecret string    `json:"encrypted_secret"`
	CreatedAt       time.Time `json:"created_at"`
}

// VerificationStatus is the outcome of an integration check run.
type VerificationStatus string

const (
	VerificationStatusPassed  VerificationStatus = "passed"
	VerificationStatusFailed  VerificationStatus = "failed"
	VerificationStatusPartial VerificationStatus = "partial"
)

// CheckTypeTestSendLive is the live test-send check gating provider readiness.
const CheckTypeTestSendLive = "test_send_live"

// IntegrationVerification records one integration check run. Only the most
// recent row per (tenant, client, provider, checkType) matters; staleness is a
// function of its age.
type IntegrationVerification struct {
	TenantID  string             `json:"tenant_id"`
	ClientID  string             `json:"client_id"`
	Provider  string             `json:"provider"`
	CheckType string             `json:"check_type"`
	Status    VerificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
