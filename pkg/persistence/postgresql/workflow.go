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

// WorkflowRepository handles workflow rows. The node graph is stored as JSONB
// and round-trips through the models types.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
		id
	  , organization_id
	  , name
	  , description
	  , status
	  , nodes
	  , edges
	  , variables
	  , settings
	  , total_executions
	  , successful_executions
	  , failed_executions
	  , avg_execution_time_ms
	  , last_run_at
	  , created_at
	  , updated_at
	  , archived_at
`

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND organization_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, workflowID, organizationID)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, err)
	}

	return workflow, nil
}

// Workflows lists a tenant's workflows, newest first.
func (r *WorkflowRepository) Workflows(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, persistence.NewStoreError("Workflows", organizationID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Workflows", organizationID, err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("Workflows", organizationID, err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	nodesJSON, edgesJSON, variablesJSON, settingsJSON, err := marshalGraph(workflow)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (
			id, organization_id, name, description, status,
			nodes, edges, variables, settings,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			variables = EXCLUDED.variables,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
		WHERE workflows.organization_id = EXCLUDED.organization_id
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		nodesJSON,
		edgesJSON,
		variablesJSON,
		settingsJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// ArchiveWorkflow soft-deletes the workflow.
func (r *WorkflowRepository) ArchiveWorkflow(ctx context.Context, organizationID, workflowID string) error {
	query := `
		UPDATE workflows
		SET status = $3,
			archived_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, organizationID, models.WorkflowStatusArchived)
	if err != nil {
		return persistence.NewStoreError("ArchiveWorkflow", workflowID, err)
	}

	return requireOneRow(result, "ArchiveWorkflow", workflowID, persistence.ErrWorkflowNotFound)
}

// RecordWorkflowOutcome folds one finished execution into the counters and the
// running mean inside one UPDATE.
func (r *WorkflowRepository) RecordWorkflowOutcome(ctx context.Context, organizationID, workflowID string, success bool, durationMs int64) error {
	query := `
		UPDATE workflows
		SET avg_execution_time_ms =
				((avg_execution_time_ms * total_executions) + $3) / (total_executions + 1),
			total_executions = total_executions + 1,
			successful_executions = successful_executions + CASE WHEN $4 THEN 1 ELSE 0 END,
			failed_executions = failed_executions + CASE WHEN $4 THEN 0 ELSE 1 END,
			last_run_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, organizationID, durationMs, success)
	if err != nil {
		return persistence.NewStoreError("RecordWorkflowOutcome", workflowID, err)
	}

	return requireOneRow(result, "RecordWorkflowOutcome", workflowID, persistence.ErrWorkflowNotFound)
}

func marshalGraph(workflow *models.Workflow) ([]byte, []byte, []byte, []byte, error) {
	nodesJSON, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edgesJSON, err := json.Marshal(workflow.Edges)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	variablesJSON, err := json.Marshal(workflow.Variables)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	settingsJSON, err := json.Marshal(workflow.Settings)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	return nodesJSON, edgesJSON, variablesJSON, settingsJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	var (
		nodesJSON     []byte
		edgesJSON     []byte
		variablesJSON []byte
		settingsJSON  []byte
		lastRunAt     sql.NullTime
		archivedAt    sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&nodesJSON,
		&edgesJSON,
		&variablesJSON,
		&settingsJSON,
		&workflow.TotalExecutions,
		&workflow.SuccessfulExecutions,
		&workflow.FailedExecutions,
		&workflow.AvgExecutionMs,
		&lastRunAt,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&archivedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(edgesJSON, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	if err := json.Unmarshal(variablesJSON, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &workflow.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if lastRunAt.Valid {
		workflow.LastRunAt = &lastRunAt.Time
	}

	if archivedAt.Valid {
		workflow.ArchivedAt = &archivedAt.Time
	}

	return workflow, nil
}
