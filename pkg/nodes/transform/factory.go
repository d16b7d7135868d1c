package transform

import "github.com/atlasfit/automation/pkg/protocol"

// Factory creates transform node instances.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "transform"
}

func (*Factory) Create(config map[string]any) (protocol.Node, error) {
	return NewNode(config)
}
