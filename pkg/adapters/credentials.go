// Package adapters provides shared wiring for provider adapters: credential
// resolution and the secret-unwrapping collaborator contract.
package adapters

import (
	"context"

	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/protocol"
)

// SecretUnwrapper decrypts a stored secret. Key management lives outside the
// engine; adapters only ever see the unwrapped value.
type SecretUnwrapper interface {
	Unwrap(ctx context.Context, encryptedSecret string) (string, error)
}

// PlaintextUnwrapper passes secrets through unchanged. Used in tests and local
// development where credentials are stored unencrypted.
type PlaintextUnwrapper struct{}

func (PlaintextUnwrapper) Unwrap(_ context.Context, encryptedSecret string) (string, error) {
	return encryptedSecret, nil
}

// CredentialResolver looks up a stored credential and unwraps its secret.
type CredentialResolver struct {
	credentials persistence.CredentialRepository
	unwrapper   SecretUnwrapper
}

func NewCredentialResolver(credentials persistence.CredentialRepository, unwrapper SecretUnwrapper) *CredentialResolver {
	return &CredentialResolver{
		credentials: credentials,
		unwrapper:   unwrapper,
	}
}

// Resolve returns the unwrapped secret for the credential, or a
// credential_missing taxonomy error when no credential is stored.
func (r *CredentialResolver) Resolve(ctx context.Context, tenantID, clientID, provider, credentialType string) (string, error) {
	credential, err := r.credentials.GetCredential(ctx, tenantID, clientID, provider, credentialType)
	if err != nil {
		if persistence.IsCredentialNotFound(err) {
			return "", protocol.NewCredentialMissingError(provider, credentialType)
		}

		return "", err
	}

	secret, err := r.unwrapper.Unwrap(ctx, credential.EncryptedSecret)
	if err != nil {
		return "", err
	}

	if secret == "" {
		return "", protocol.NewCredentialMissingError(provider, credentialType)
	}

	return secret, nil
}
