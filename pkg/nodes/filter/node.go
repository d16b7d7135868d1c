// Package filter provides the branch-stopping predicate node.
package filter

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

// Node evaluates a predicate; a false result stops the branch quietly.
// Unlike a failing node, a filtered-out branch is not an error.
type Node struct {
	expression string
}

// NewNode creates a filter node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &Node{expression: expression}, nil
}

// Execute renders the predicate and stops the branch when it is false.
func (n *Node) Execute(_ context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	value, err := template.RenderWithContext(n.expression, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("filter evaluation failed: %w", err)
	}

	passed := truthy(value)

	logger.Debug("Filter evaluated", "expression", n.expression, "passed", passed)

	return &protocol.NodeResult{
		Output: map[string]any{"passed": passed},
		Stop:   !passed,
	}, nil
}

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
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}
