// Package wait provides the delay node for workflow graph execution.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/protocol"
)

// MaxDuration caps a single wait; the workflow deadline still applies on top.
const MaxDuration = 1 * time.Hour

// Node pauses the branch for a configured duration. The wait is a timed
// suspension, not a busy loop, and the execution deadline cuts it short.
type Node struct {
	duration time.Duration
}

// NewNode creates a wait node from configuration.
func NewNode(config map[string]any) (*Node, error) {
	seconds, ok := config["duration_sec"].(float64)
	if !ok || seconds <= 0 {
		return nil, errors.New("missing or invalid field 'duration_sec'")
	}

	duration := time.Duration(seconds * float64(time.Second))
	if duration > MaxDuration {
		duration = MaxDuration
	}

	return &Node{duration: duration}, nil
}

// Execute sleeps until the duration or the context deadline, whichever first.
func (n *Node) Execute(ctx context.Context, _ *models.ExecutionContext, logger *slog.Logger) (*protocol.NodeResult, error) {
	logger.Debug("Waiting", "duration", n.duration)

	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(n.duration):
	}

	return &protocol.NodeResult{
		Output: map[string]any{"waited_ms": time.Since(start).Milliseconds()},
	}, nil
}
