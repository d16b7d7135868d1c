package lognode

import "github.com/atlasfit/automation/pkg/protocol"

// Factory creates action node instances.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return "action"
}

func (*Factory) Create(config map[string]any) (protocol.Node, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewNode(config), nil
}
