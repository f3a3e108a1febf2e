package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/persistence"
)

// CredentialRepository stores one JSON file per credential lookup key.
type CredentialRepository struct {
	root string
	mu   sync.RWMutex
}

func (r *CredentialRepository) path(tenantID, clientID, provider, credentialType string) string {
	name := fmt.Sprintf("%s_%s_%s_%s.json", tenantID, clientID, provider, credentialType)

	return filepath.Join(r.root, "credentials", name)
}

func (r *CredentialRepository) GetCredential(_ context.Context, tenantID, clientID, provider, credentialType string) (*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	credential := &models.Credential{}

	found, err := readJSONFile(r.path(tenantID, clientID, provider, credentialType), credential)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrCredentialNotFound
	}

	return credential, nil
}

func (r *CredentialRepository) SaveCredential(_ context.Context, credential *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	path := r.path(credential.TenantID, credential.ClientID, credential.Provider, credential.CredentialType)

	return writeJSONFile(path, credential)
}

// VerificationRepository stores the verification history per lookup key; the
// latest entry is the one that matters.
type VerificationRepository struct {
	root string
	mu   sync.Mutex
}

func (r *VerificationRepository) path(tenantID, clientID, provider, checkType string) string {
	name := fmt.Sprintf("%s_%s_%s_%s.json", tenantID, clientID, provider, checkType)

	return filepath.Join(r.root, "verifications", name)
}

func (r *VerificationRepository) LatestVerification(_ context.Context, tenantID, clientID, provider, checkType string) (*models.IntegrationVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	verifications := make([]*models.IntegrationVerification, 0)

	found, err := readJSONFile(r.path(tenantID, clientID, provider, checkType), &verifications)
	if err != nil {
		return nil, err
	}

	if !found || len(verifications) == 0 {
		return nil, persistence.ErrVerificationNotFound
	}

	latest := verifications[0]
	for _, verification := range verifications[1:] {
		if verification.CreatedAt.After(latest.CreatedAt) {
			latest = verification
		}
	}

	return latest, nil
}

func (r *VerificationRepository) SaveVerification(_ context.Context, verification *models.IntegrationVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if verification.CreatedAt.IsZero() {
		verification.CreatedAt = time.Now().UTC()
	}

	path := r.path(verification.TenantID, verification.ClientID, verification.Provider, verification.CheckType)

	verifications := make([]*models.IntegrationVerification, 0)

	_, err := readJSONFile(path, &verifications)
	if err != nil {
		return err
	}

	verifications = append(verifications, verification)

	return writeJSONFile(path, verifications)
}
