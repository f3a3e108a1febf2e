// Package registry maps action names to provider adapters and validates
// action configs against each adapter's JSON schema.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/protocol"
)

type Registry struct {
	logger   *slog.Logger
	adapters map[string]protocol.Adapter
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		adapters: make(map[string]protocol.Adapter),
	}
}

// Register stores the adapter under its lowercased action name.
func (r *Registry) Register(adapter protocol.Adapter) {
	r.adapters[strings.ToLower(adapter.ID())] = adapter
}

// Resolve is case-insensitive on the action name.
func (r *Registry) Resolve(action string) (protocol.Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(action)]
	if !ok {
		return nil, protocol.NewUnsupportedActionError(action)
	}

	return adapter, nil
}

// AvailableActions lists the registered action names.
func (r *Registry) AvailableActions() []string {
	actions := make([]string, 0, len(r.adapters))
	for action := range r.adapters {
		actions = append(actions, action)
	}

	return actions
}

// ValidateActionConfig checks an action node's config against the adapter's
// declared schema. An unknown action is a resolution error, not a schema one.
func (r *Registry) ValidateActionConfig(action string, config map[string]any) error {
	adapter, err := r.Resolve(action)
	if err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewStringLoader(adapter.ConfigSchema())
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate action config: %w", err)
	}

	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for action %s: %s", action, strings.Join(details, "; "))
	}

	return nil
}

// ValidateDefinition checks every action node in a workflow definition before
// it is accepted for execution.
func (r *Registry) ValidateDefinition(definition *models.WorkflowDefinition) error {
	for _, node := range definition.Nodes {
		if node.Type != models.NodeTypeAction {
			continue
		}

		action, _ := node.Config["action"].(string)
		if action == "" {
			return protocol.NewInvalidActionError(node.ID)
		}

		config, _ := node.Config["config"].(map[string]any)

		err := r.ValidateActionConfig(action, config)
		if err != nil {
			return err
		}
	}

	return nil
}
