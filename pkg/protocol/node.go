// Package protocol defines the contracts between the executor and node
// implementations.
package protocol

import (
	"context"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
)

// NodeResult is what a node hands back to the executor.
type NodeResult struct {
	// Output becomes the node's step output, visible to downstream nodes.
	Output map[string]any

	// Handle selects which outgoing edges to follow. Empty follows every
	// unlabelled edge; condition nodes return "true" or "false".
	Handle string

	// Stop halts this branch without failing the execution (filter nodes).
	Stop bool

	// Retries reports how many re-attempts the node burned internally.
	Retries int
}

// Node executes one unit of work within an execution.
type Node interface {
	Execute(ctx context.Context, executionCtx *models.ExecutionContext, logger *slog.Logger) (*NodeResult, error)
}

// NodeFactory builds node instances of one type from raw configuration.
type NodeFactory interface {
	ID() string
	Create(config map[string]any) (Node, error)
}

// Messenger delivers email and SMS. Delivery providers are external
// collaborators; the pipeline only needs this surface.
type Messenger interface {
	SendEmail(ctx context.Context, organizationID, to, subject, body string) error
	SendSMS(ctx context.Context, organizationID, to, body string) error
}
