package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// CredentialRepository handles stored provider credentials.
type CredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *CredentialRepository) GetCredential(ctx context.Context, tenantID, clientID, provider, credentialType string) (*models.Credential, error) {
	query := `
		SELECT
			tenant_id
		  , client_id
		  , provider
		  , credential_type
		  , encrypted_secret
		  , created_at
		FROM credentials
		WHERE tenant_id = $1 AND client_id = $2 AND provider = $3 AND credential_type = $4
	`

	var credential models.Credential

	err := r.db.QueryRowContext(ctx, query, tenantID, clientID, provider, credentialType).Scan(
		&credential.TenantID, &credential.ClientID, &credential.Provider,
		&credential.CredentialType, &credential.EncryptedSecret, &credential.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCredentialNotFound
		}

		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	return &credential, nil
}

func (r *CredentialRepository) SaveCredential(ctx context.Context, credential *models.Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO credentials (tenant_id, client_id, provider, credential_type, encrypted_secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, client_id, provider, credential_type)
		DO UPDATE SET encrypted_secret = EXCLUDED.encrypted_secret
	`

	_, err := r.db.ExecContext(ctx, query,
		credential.TenantID, credential.ClientID, credential.Provider,
		credential.CredentialType, credential.EncryptedSecret, credential.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// VerificationRepository handles integration verification history.
type VerificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *VerificationRepository) LatestVerification(ctx context.Context, tenantID, clientID, provider, checkType string) (*models.IntegrationVerification, error) {
	query := `
		SELECT
			tenant_id
		  , client_id
		  , provider
		  , check_type
		  , status
		  , created_at
		FROM integration_verifications
		WHERE tenant_id = $1 AND client_id = $2 AND provider = $3 AND check_type = $4
		ORDER BY created_at DESC
		LIMIT 1
	`

	var verification models.IntegrationVerification

	err := r.db.QueryRowContext(ctx, query, tenantID, clientID, provider, checkType).Scan(
		&verification.TenantID, &verification.ClientID, &verification.Provider,
		&verification.CheckType, &verification.Status, &verification.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVerificationNotFound
		}

		return nil, fmt.Errorf("failed to query verification: %w", err)
	}

	return &verification, nil
}

func (r *VerificationRepository) SaveVerification(ctx context.Context, verification *models.IntegrationVerification) error {
	if verification.CreatedAt.IsZero() {
		verification.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO integration_verifications (tenant_id, client_id, provider, check_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		verification.TenantID, verification.ClientID, verification.Provider,
		verification.CheckType, verification.Status, verification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}

	return nil
}
