// Package models defines the core domain models for the workflow execution engine.
package models

// NodeType represents the kind of a workflow node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeAction    NodeType = "action"
)

// WorkflowNode is a single node in a workflow definition. Nodes form a flat
// ordered list; execution is linear with early-exit gates, not a branching
// graph.
type WorkflowNode struct {
	ID     string         `json:"id"   validate:"required"`
	Type   NodeType       `json:"type" validate:"required"`
	Config map[string]any `json:"config"`
}

// WorkflowDefinition is an approved, immutable version of a workflow. A new
// edit produces a new version; the engine only ever reads a definition by its
// id+version pair.
type WorkflowDefinition struct {
	ID      string          `json:"id"      validate:"required"`
	Version int             `json:"version" validate:"required,min=1"`
	Nodes   []*WorkflowNode `json:"nodes"`
}

// ActionNodeCount returns how many action nodes the definition contains. Used
// by the safety gate as the declared action count at submission time.
func (d *WorkflowDefinition) ActionNodeCount() int {
	count := 0

	for _, node := range d.Nodes {
		if node.Type == NodeTypeAction {
			count++
		}
	}

	return count
}
