// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/outflowhq/outflow/pkg/adapters"
	"github.com/outflowhq/outflow/pkg/adapters/crm"
	"github.com/outflowhq/outflow/pkg/adapters/email"
	"github.com/outflowhq/outflow/pkg/adapters/whatsapp"
	"github.com/outflowhq/outflow/pkg/persistence"
	"github.com/outflowhq/outflow/pkg/registry"
)

// AdapterConfig carries the deployment-level adapter settings. DryRun makes
// every provider adapter short-circuit before credential lookups.
type AdapterConfig struct {
	DryRun          bool
	MaxAgeDays      int
	WhatsAppBaseURL string
	EmailBaseURL    string
	CRMBaseURL      string
}

// NewRegistry builds the action registry with all native provider adapters.
func NewRegistry(logger *slog.Logger, store persistence.Persistence, config AdapterConfig) *registry.Registry {
	reg := registry.NewRegistry(logger)

	resolver := adapters.NewCredentialResolver(store.CredentialRepository(), adapters.PlaintextUnwrapper{})
	verifications := store.VerificationRepository()

	reg.Register(whatsapp.NewAdapter(resolver, verifications, whatsapp.Config{
		BaseURL:    config.WhatsAppBaseURL,
		DryRun:     config.DryRun,
		MaxAgeDays: config.MaxAgeDays,
	}, logger))

	reg.Register(email.NewAdapter(resolver, verifications, email.Config{
		BaseURL:    config.EmailBaseURL,
		DryRun:     config.DryRun,
		MaxAgeDays: config.MaxAgeDays,
	}, logger))

	reg.Register(crm.NewAdapter(crm.Config{
		BaseURL: config.CRMBaseURL,
		DryRun:  config.DryRun,
	}, logger))

	return reg
}
