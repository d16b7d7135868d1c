// Package persistence provides the data storage abstraction for webhooks,
// workflows, executions and the security-violation audit log.
package persistence

import (
	"context"

	"github.com/atlasfit/automation/pkg/models"
)

// Persistence is the full storage surface the pipeline needs. All operations
// are tenant-scoped: lookups take the organization id alongside the record id
// and never return another tenant's rows.
type Persistence interface {
	WebhookRepository
	WorkflowRepository
	ExecutionRepository
	SecurityLog

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WebhookRepository stores inbound trigger endpoints and their rolling counters.
type WebhookRepository interface {
	WebhookByID(ctx context.Context, organizationID, webhookID string) (*models.Webhook, error)
	SaveWebhook(ctx context.Context, webhook *models.Webhook) error

	// RecordWebhookRequest atomically increments total_requests and stamps
	// last_triggered_at. Called at accept time, before execution completes.
	RecordWebhookRequest(ctx context.Context, organizationID, webhookID string) error

	// RecordWebhookOutcome atomically folds one finished execution into the
	// webhook's success/failure counters and running-average processing time.
	RecordWebhookOutcome(ctx context.Context, organizationID, webhookID string, success bool, durationMs int64) error
}

// WorkflowRepository stores workflow graphs and their aggregate counters.
type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error)
	Workflows(ctx context.Context, organizationID string) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	// ArchiveWorkflow soft-deletes: workflows are archived, never hard-deleted.
	ArchiveWorkflow(ctx context.Context, organizationID, workflowID string) error

	// RecordWorkflowOutcome atomically folds one finished execution into the
	// workflow's counters and running-average execution time.
	RecordWorkflowOutcome(ctx context.Context, organizationID, workflowID string, success bool, durationMs int64) error
}

// ExecutionRepository stores execution records. An execution is inserted once
// with status running and receives exactly one terminal update.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, organizationID, executionID string) (*models.Execution, error)
	ExecutionsByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.Execution, error)

	// CompleteExecution applies the terminal update. It only succeeds while
	// the stored status is still running; a second call is a no-op error.
	CompleteExecution(ctx context.Context, execution *models.Execution) error
}

// SecurityLog is the append-only audit sink for gate rejections.
type SecurityLog interface {
	AppendSecurityViolation(ctx context.Context, violation *models.SecurityViolation) error
}
