package cmd

import (
	"log/slog"

	"github.com/atlasfit/automation/pkg/nodes/condition"
	"github.com/atlasfit/automation/pkg/nodes/filter"
	"github.com/atlasfit/automation/pkg/nodes/httpcall"
	"github.com/atlasfit/automation/pkg/nodes/lognode"
	"github.com/atlasfit/automation/pkg/nodes/loop"
	"github.com/atlasfit/automation/pkg/nodes/message"
	"github.com/atlasfit/automation/pkg/nodes/transform"
	"github.com/atlasfit/automation/pkg/nodes/wait"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/registry"
)

// NewRegistry creates a node registry with every native node type registered.
// The messenger backs the email and sms nodes; pass a LogMessenger when no
// delivery provider is configured.
func NewRegistry(logger *slog.Logger, messenger protocol.Messenger) *registry.Registry {
	if messenger == nil {
		messenger = message.NewLogMessenger(logger)
	}

	reg := registry.NewRegistry(logger)

	reg.RegisterNode(condition.NewFactory())
	reg.RegisterNode(filter.NewFactory())
	reg.RegisterNode(transform.NewFactory())
	reg.RegisterNode(wait.NewFactory())
	reg.RegisterNode(loop.NewFactory())
	reg.RegisterNode(httpcall.NewFactory())
	reg.RegisterNode(lognode.NewFactory())
	reg.RegisterNode(message.NewEmailFactory(messenger))
	reg.RegisterNode(message.NewSMSFactory(messenger))

	return reg
}
