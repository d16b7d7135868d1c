package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/google/uuid"
)

// WebhookRepository handles webhook rows.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWebhookRepository(db *sql.DB, logger *slog.Logger) *WebhookRepository {
	return &WebhookRepository{db: db, logger: logger}
}

func (r *WebhookRepository) WebhookByID(ctx context.Context, organizationID, webhookID string) (*models.Webhook, error) {
	query := `
		SELECT
			id
		  , organization_id
		  , workflow_id
		  , name
		  , secret
		  , active
		  , timestamp_tolerance_sec
		  , max_payload_bytes
		  , payload_schema
		  , total_requests
		  , successful_executions
		  , failed_executions
		  , avg_processing_time_ms
		  , last_triggered_at
		  , created_at
		  , updated_at
		FROM webhooks
		WHERE id = $1 AND organization_id = $2
	`

	webhook := &models.Webhook{}

	var (
		schemaJSON      []byte
		lastTriggeredAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, webhookID, organizationID).Scan(
		&webhook.ID,
		&webhook.OrganizationID,
		&webhook.WorkflowID,
		&webhook.Name,
		&webhook.Secret,
		&webhook.Active,
		&webhook.TimestampToleranceSec,
		&webhook.MaxPayloadBytes,
		&schemaJSON,
		&webhook.TotalRequests,
		&webhook.SuccessfulExecutions,
		&webhook.FailedExecutions,
		&webhook.AvgProcessingMs,
		&lastTriggeredAt,
		&webhook.CreatedAt,
		&webhook.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("WebhookByID", webhookID, persistence.ErrWebhookNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("WebhookByID", webhookID, err)
	}

	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &webhook.PayloadSchema); err != nil {
			return nil, persistence.NewStoreError("WebhookByID", webhookID, fmt.Errorf("failed to unmarshal payload schema: %w", err))
		}
	}

	if lastTriggeredAt.Valid {
		webhook.LastTriggeredAt = &lastTriggeredAt.Time
	}

	return webhook, nil
}

func (r *WebhookRepository) SaveWebhook(ctx context.Context, webhook *models.Webhook) error {
	now := time.Now().UTC()
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = now
	}

	webhook.UpdatedAt = now

	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}

	var schemaJSON any

	if webhook.HasPayloadSchema() {
		data, err := json.Marshal(webhook.PayloadSchema)
		if err != nil {
			return persistence.NewStoreError("SaveWebhook", webhook.ID, fmt.Errorf("failed to marshal payload schema: %w", err))
		}

		schemaJSON = data
	}

	query := `
		INSERT INTO webhooks (
			id, organization_id, workflow_id, name, secret, active,
			timestamp_tolerance_sec, max_payload_bytes, payload_schema,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			secret = EXCLUDED.secret,
			active = EXCLUDED.active,
			timestamp_tolerance_sec = EXCLUDED.timestamp_tolerance_sec,
			max_payload_bytes = EXCLUDED.max_payload_bytes,
			payload_schema = EXCLUDED.payload_schema,
			updated_at = EXCLUDED.updated_at
		WHERE webhooks.organization_id = EXCLUDED.organization_id
	`

	_, err := r.db.ExecContext(ctx, query,
		webhook.ID,
		webhook.OrganizationID,
		webhook.WorkflowID,
		webhook.Name,
		webhook.Secret,
		webhook.Active,
		webhook.TimestampToleranceSec,
		webhook.MaxPayloadBytes,
		schemaJSON,
		webhook.CreatedAt,
		webhook.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveWebhook", webhook.ID, err)
	}

	return nil
}

// RecordWebhookRequest is a single-statement increment, safe under
// concurrent triggers.
func (r *WebhookRepository) RecordWebhookRequest(ctx context.Context, organizationID, webhookID string) error {
	query := `
		UPDATE webhooks
		SET total_requests = total_requests + 1,
			last_triggered_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, webhookID, organizationID)
	if err != nil {
		return persistence.NewStoreError("RecordWebhookRequest", webhookID, err)
	}

	return requireOneRow(result, "RecordWebhookRequest", webhookID, persistence.ErrWebhookNotFound)
}

// RecordWebhookOutcome folds one finished execution into the counters and the
// running mean, all inside one UPDATE so concurrent completions never lose
// increments.
func (r *WebhookRepository) RecordWebhookOutcome(ctx context.Context, organizationID, webhookID string, success bool, durationMs int64) error {
	query := `
		UPDATE webhooks
		SET avg_processing_time_ms =
				((avg_processing_time_ms * (successful_executions + failed_executions)) + $3)
				/ (successful_executions + failed_executions + 1),
			successful_executions = successful_executions + CASE WHEN $4 THEN 1 ELSE 0 END,
			failed_executions = failed_executions + CASE WHEN $4 THEN 0 ELSE 1 END,
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, webhookID, organizationID, durationMs, success)
	if err != nil {
		return persistence.NewStoreError("RecordWebhookOutcome", webhookID, err)
	}

	return requireOneRow(result, "RecordWebhookOutcome", webhookID, persistence.ErrWebhookNotFound)
}

func requireOneRow(result sql.Result, op, entityID string, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError(op, entityID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError(op, entityID, notFound)
	}

	return nil
}
