package httpcall

import "github.com/atlasfit/automation/pkg/protocol"

// Factory creates outbound webhook node instances.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "webhook"
}

func (*Factory) Create(config map[string]any) (protocol.Node, error) {
	return NewNode(config)
}
