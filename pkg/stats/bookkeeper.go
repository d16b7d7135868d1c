// Package stats folds finished executions into workflow and webhook
// aggregate counters.
package stats

import (
	"context"
	"log/slog"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
)

// Bookkeeper updates aggregate statistics after an execution reaches a
// terminal status. Updates are best effort: a failed counter write is logged
// and never fails the execution it describes.
type Bookkeeper struct {
	workflows persistence.WorkflowRepository
	webhooks  persistence.WebhookRepository
	logger    *slog.Logger
}

func NewBookkeeper(workflows persistence.WorkflowRepository, webhooks persistence.WebhookRepository, logger *slog.Logger) *Bookkeeper {
	return &Bookkeeper{
		workflows: workflows,
		webhooks:  webhooks,
		logger:    logger.With("module", "bookkeeper"),
	}
}

// RecordExecution folds one terminal execution into the owning workflow's
// counters and, when the execution was webhook-triggered, the webhook's.
// The webhook's total_requests counter is not touched here; it was already
// incremented at accept time.
func (b *Bookkeeper) RecordExecution(ctx context.Context, execution *models.Execution) {
	if !execution.Terminal() {
		b.logger.WarnContext(ctx, "Refusing to record non-terminal execution",
			"execution_id", execution.ID,
			"status", execution.Status,
		)

		return
	}

	success := execution.Status == models.ExecutionStatusCompleted

	err := b.workflows.RecordWorkflowOutcome(ctx, execution.OrganizationID, execution.WorkflowID, success, execution.ProcessingMs)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to update workflow statistics",
			"workflow_id", execution.WorkflowID,
			"execution_id", execution.ID,
			"error", err,
		)
	}

	if execution.WebhookID == "" {
		return
	}

	err = b.webhooks.RecordWebhookOutcome(ctx, execution.OrganizationID, execution.WebhookID, success, execution.ProcessingMs)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to update webhook statistics",
			"webhook_id", execution.WebhookID,
			"execution_id", execution.ID,
			"error", err,
		)
	}
}
