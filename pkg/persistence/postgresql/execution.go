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
)

// ExecutionRepository handles execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
		id
	  , workflow_id
	  , webhook_id
	  , organization_id
	  , status
	  , input
	  , output
	  , error
	  , steps
	  , processing_time_ms
	  , trigger_meta
	  , created_at
	  , completed_at
`

func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	inputJSON, err := json.Marshal(execution.Input)
	if err != nil {
		return persistence.NewStoreError("CreateExecution", execution.ID, fmt.Errorf("failed to marshal input: %w", err))
	}

	triggerJSON, err := json.Marshal(execution.Trigger)
	if err != nil {
		return persistence.NewStoreError("CreateExecution", execution.ID, fmt.Errorf("failed to marshal trigger meta: %w", err))
	}

	var webhookID any
	if execution.WebhookID != "" {
		webhookID = execution.WebhookID
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, webhook_id, organization_id, status,
			input, trigger_meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		webhookID,
		execution.OrganizationID,
		execution.Status,
		inputJSON,
		triggerJSON,
		execution.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("CreateExecution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, organizationID, executionID string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE id = $1 AND organization_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, executionID, organizationID)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	return execution, nil
}

// ExecutionsByWorkflow lists a workflow's executions, newest first.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, organizationID, workflowID string, limit int) ([]*models.Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE organization_id = $1 AND workflow_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID, workflowID, limit)
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", workflowID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ExecutionsByWorkflow", workflowID, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", workflowID, err)
	}

	return executions, nil
}

// CompleteExecution applies the terminal update, guarded so it only lands
// while the row is still running. A second call affects zero rows and is
// reported as ErrExecutionAlreadyTerminal.
func (r *ExecutionRepository) CompleteExecution(ctx context.Context, execution *models.Execution) error {
	if !execution.Terminal() {
		return persistence.NewStoreError("CompleteExecution", execution.ID,
			fmt.Errorf("terminal update requires a terminal status, got %s", execution.Status))
	}

	outputJSON, err := json.Marshal(execution.Output)
	if err != nil {
		return persistence.NewStoreError("CompleteExecution", execution.ID, fmt.Errorf("failed to marshal output: %w", err))
	}

	stepsJSON, err := json.Marshal(execution.Steps)
	if err != nil {
		return persistence.NewStoreError("CompleteExecution", execution.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	completedAt := time.Now().UTC()
	if execution.CompletedAt != nil {
		completedAt = *execution.CompletedAt
	}

	query := `
		UPDATE executions
		SET status = $3,
			output = $4,
			error = $5,
			steps = $6,
			processing_time_ms = $7,
			completed_at = $8
		WHERE id = $1 AND organization_id = $2 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.OrganizationID,
		execution.Status,
		outputJSON,
		execution.Error,
		stepsJSON,
		execution.ProcessingMs,
		completedAt,
	)
	if err != nil {
		return persistence.NewStoreError("CompleteExecution", execution.ID, err)
	}

	return requireOneRow(result, "CompleteExecution", execution.ID, persistence.ErrExecutionAlreadyTerminal)
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	execution := &models.Execution{}

	var (
		webhookID   sql.NullString
		inputJSON   []byte
		outputJSON  []byte
		stepsJSON   []byte
		triggerJSON []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&webhookID,
		&execution.OrganizationID,
		&execution.Status,
		&inputJSON,
		&outputJSON,
		&execution.Error,
		&stepsJSON,
		&execution.ProcessingMs,
		&triggerJSON,
		&execution.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if webhookID.Valid {
		execution.WebhookID = webhookID.String
	}

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &execution.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	if err := json.Unmarshal(stepsJSON, &execution.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if err := json.Unmarshal(triggerJSON, &execution.Trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger meta: %w", err)
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	return execution, nil
}
