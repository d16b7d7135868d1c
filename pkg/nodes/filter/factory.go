package filter

import "github.com/atlasfit/automation/pkg/protocol"

// Factory creates filter node instances.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "filter"
}

func (*Factory) Create(config map[string]any) (protocol.Node, error) {
	return NewNode(config)
}
