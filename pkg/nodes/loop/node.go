// Package loop provides the bounded iteration node.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

// MaxIterations bounds a loop regardless of input size; sanitized arrays are
// already capped at the same bound.
const MaxIterations = 1000

// Node resolves an array from the execution context and renders a template
// once per element, collecting the results.
type Node struct {
	items      string
	expression string
}

// NewNode creates a loop node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	items, ok := config["items"].(string)
	if !ok || items == "" {
		return nil, errors.New("missing required field 'items'")
	}

	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &Node{items: items, expression: expression}, nil
}

// Execute renders the per-item expression for every element in order.
func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	resolved, err := template.RenderWithContext(n.items, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("loop items resolution failed: %w", err)
	}

	items, ok := resolved.([]any)
	if !ok {
		return nil, fmt.Errorf("loop items must resolve to an array, got %T", resolved)
	}

	if len(items) > MaxIterations {
		items = items[:MaxIterations]
	}

	logger.Debug("Looping", "count", len(items))

	results := make([]any, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data := map[string]any{
			"item":         item,
			"index":        i,
			"trigger_data": executionCtx.TriggerData,
			"variables":    executionCtx.Variables,
			"vars":         executionCtx.Variables,
			"steps":        executionCtx.StepOutputs,
		}

		rendered, err := template.Render(n.expression, data)
		if err != nil {
			return nil, fmt.Errorf("loop iteration %d failed: %w", i, err)
		}

		results = append(results, rendered)
	}

	return &protocol.NodeResult{
		Output: map[string]any{
			"results": results,
			"count":   len(results),
		},
	}, nil
}
