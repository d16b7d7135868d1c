package condition

import "github.com/atlasfit/automation/pkg/protocol"

// Factory creates condition node instances.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "condition"
}

func (*Factory) Create(config map[string]any) (protocol.Node, error) {
	return NewNode(config)
}
