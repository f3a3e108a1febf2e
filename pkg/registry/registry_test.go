package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outflowhq/outflow/pkg/log"
	"github.com/outflowhq/outflow/pkg/models"
	"github.com/outflowhq/outflow/pkg/protocol"
)

type mockAdapter struct {
	id     string
	schema string
}

func (m *mockAdapter) ID() string {
	return m.id
}

func (m *mockAdapter) ConfigSchema() string {
	return m.schema
}

func (m *mockAdapter) Execute(_ context.Context, _ protocol.ActionInput, _ protocol.ActionContext) (map[string]any, error) {
	return map[string]any{"delivered": true}, nil
}

func newTestRegistry() *Registry {
	reg := NewRegistry(log.WithModule("test"))
	reg.Register(&mockAdapter{
		id:     "whatsapp_send",
		schema: `{"type": "object", "properties": {"template": {"type": "string"}}, "required": ["template"]}`,
	})

	return reg
}

func TestResolve_CaseInsensitive(t *testing.T) {
	reg := newTestRegistry()

	adapter, err := reg.Resolve("WhatsApp_Send")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp_send", adapter.ID())
}

func TestResolve_Unknown(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Resolve("sms_send")

	require.Error(t, err)
	assert.Equal(t, "unsupported_action:sms_send", err.Error())
}

func TestValidateActionConfig(t *testing.T) {
	reg := newTestRegistry()

	err := reg.ValidateActionConfig("whatsapp_send", map[string]any{"template": "welcome"})
	assert.NoError(t, err)

	err = reg.ValidateActionConfig("whatsapp_send", map[string]any{})
	assert.Error(t, err)
}

func TestValidateDefinition(t *testing.T) {
	reg := newTestRegistry()

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Config: map[string]any{"event": "lead.created"}},
			{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{
				"action": "whatsapp_send",
				"config": map[string]any{"template": "welcome"},
			}},
		},
	}

	assert.NoError(t, reg.ValidateDefinition(definition))
}

func TestValidateDefinition_MissingActionName(t *testing.T) {
	reg := newTestRegistry()

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{}},
		},
	}

	err := reg.ValidateDefinition(definition)

	require.Error(t, err)
	assert.Equal(t, "invalid_action:a1", err.Error())
}

func TestValidateDefinition_BadConfig(t *testing.T) {
	reg := newTestRegistry()

	definition := &models.WorkflowDefinition{
		ID:      "wf-1",
		Version: 1,
		Nodes: []*models.WorkflowNode{
			{ID: "a1", Type: models.NodeTypeAction, Config: map[string]any{
				"action": "whatsapp_send",
				"config": map[string]any{},
			}},
		},
	}

	assert.Error(t, reg.ValidateDefinition(definition))
}

func TestAvailableActions(t *testing.T) {
	reg := newTestRegistry()

	assert.Equal(t, []string{"whatsapp_send"}, reg.AvailableActions())
}
