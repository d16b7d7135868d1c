// Package lognode provides the generic action node, which records a rendered
// message in the execution log. Useful as a placeholder while building out a
// workflow and for audit breadcrumbs in production flows.
package lognode

import (
	"context"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

type Node struct {
	Message string
	Level   string
}

func NewNode(config map[string]any) *Node {
	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	if level != "debug" && level != "warn" {
		level = "info"
	}

	return &Node{Message: message, Level: level}
}

func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	logger = logger.With("module", "action_node")

	message := n.Message
	if message != "" {
		rendered, err := template.RenderString(message, executionCtx)
		if err == nil {
			message = rendered
		}
	}

	switch n.Level {
	case "debug":
		logger.DebugContext(ctx, "Workflow action", "message", message)
	case "warn":
		logger.WarnContext(ctx, "Workflow action", "message", message)
	default:
		logger.InfoContext(ctx, "Workflow action", "message", message)
	}

	return &protocol.NodeResult{
		Output: map[string]any{"message": message},
	}, nil
}
