// Package transform provides the data-shaping node for workflow graph execution.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

// Node renders a template over the execution context and publishes the
// result as its step output for downstream nodes.
type Node struct {
	expression string
}

// NewNode creates a transform node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &Node{expression: expression}, nil
}

// Execute renders the transform expression.
func (n *Node) Execute(_ context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	rendered, err := template.RenderWithContext(n.expression, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("transform failed: %w", err)
	}

	logger.Debug("Transform rendered", "expression", n.expression)

	output, ok := rendered.(map[string]any)
	if !ok {
		output = map[string]any{"value": rendered}
	}

	return &protocol.NodeResult{Output: output}, nil
}
