// Package condition provides the branching node for workflow graph execution.
package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/template"
)

// Node evaluates a templated expression and routes execution down the
// "true" or "false" edge handle.
type Node struct {
	expression string
}

// NewNode creates a condition node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &Node{expression: expression}, nil
}

// Execute renders the expression and picks the outgoing handle.
func (n *Node) Execute(_ context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	value, err := template.RenderWithContext(n.expression, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("condition evaluation failed: %w", err)
	}

	isTrue := truthy(value)

	logger.Debug("Condition evaluated", "expression", n.expression, "result", isTrue)

	handle := models.EdgeHandleFalse
	if isTrue {
		handle = models.EdgeHandleTrue
	}

	return &protocol.NodeResult{
		Output: map[string]any{
			"condition_result": isTrue,
			"evaluated_value":  value,
		},
		Handle: handle,
	}, nil
}

// truthy converts rendered values to boolean.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}
