package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
)

// ExecutionRepository stores executions as one JSON document per execution.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (r *ExecutionRepository) dir(organizationID string) string {
	return filepath.Join(r.root, "organizations", organizationID, "executions")
}

func (r *ExecutionRepository) path(organizationID, executionID string) string {
	return filepath.Join(r.dir(organizationID), executionID+".json")
}

func (r *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	err := writeDocument(r.path(execution.OrganizationID, execution.ID), execution)
	if err != nil {
		return persistence.NewStoreError("CreateExecution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, organizationID, executionID string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(organizationID, executionID)
}

func (r *ExecutionRepository) load(organizationID, executionID string) (*models.Execution, error) {
	execution := &models.Execution{}

	found, err := readDocument(r.path(organizationID, executionID), execution)
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	if !found {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

// ExecutionsByWorkflow lists a workflow's executions, newest first.
func (r *ExecutionRepository) ExecutionsByWorkflow(_ context.Context, organizationID, workflowID string, limit int) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := fs.Glob(os.DirFS(r.dir(organizationID)), "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionsByWorkflow", workflowID, err)
	}

	executions := make([]*models.Execution, 0)

	for _, entry := range entries {
		executionID := strings.TrimSuffix(entry, ".json")

		execution, err := r.load(organizationID, executionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

// CompleteExecution applies the terminal update. The stored record must still
// be running; a second terminal update is rejected.
func (r *ExecutionRepository) CompleteExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.load(execution.OrganizationID, execution.ID)
	if err != nil {
		return err
	}

	if stored.Status != models.ExecutionStatusRunning {
		return persistence.NewStoreError("CompleteExecution", execution.ID, persistence.ErrExecutionAlreadyTerminal)
	}

	if !execution.Terminal() {
		return persistence.NewStoreError("CompleteExecution", execution.ID,
			fmt.Errorf("terminal update requires a terminal status, got %s", execution.Status))
	}

	if execution.CompletedAt == nil {
		now := time.Now().UTC()
		execution.CompletedAt = &now
	}

	err = writeDocument(r.path(execution.OrganizationID, execution.ID), execution)
	if err != nil {
		return persistence.NewStoreError("CompleteExecution", execution.ID, err)
	}

	return nil
}
