package models

// NodeType identifies the unit of work a node performs.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeWait      NodeType = "wait"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeTransform NodeType = "transform"
	NodeTypeFilter    NodeType = "filter"
	NodeTypeWebhook   NodeType = "webhook"
	NodeTypeEmail     NodeType = "email"
	NodeTypeSMS       NodeType = "sms"
)

// NodeTypes is the closed set of node types the validator accepts.
var NodeTypes = map[NodeType]struct{}{
	NodeTypeTrigger:   {},
	NodeTypeAction:    {},
	NodeTypeCondition: {},
	NodeTypeWait:      {},
	NodeTypeLoop:      {},
	NodeTypeTransform: {},
	NodeTypeFilter:    {},
	NodeTypeWebhook:   {},
	NodeTypeEmail:     {},
	NodeTypeSMS:       {},
}

// ValidNodeType reports whether t names a known node type.
func ValidNodeType(t string) bool {
	_, ok := NodeTypes[NodeType(t)]

	return ok
}

// Canvas bounds for node positions.
const MaxNodePosition = 10000

// WorkflowNode is a node instance in a workflow graph.
type WorkflowNode struct {
	ID        string         `json:"id"   validate:"required,uuid4"`
	Type      NodeType       `json:"type" validate:"required"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config,omitempty"`
	PositionX float64        `json:"position_x"`
	PositionY float64        `json:"position_y"`
	Enabled   bool           `json:"enabled"`
}

// Condition nodes route on these source handles.
const (
	EdgeHandleTrue  = "true"
	EdgeHandleFalse = "false"
)

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}
