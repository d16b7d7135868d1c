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

// WorkflowRepository stores workflows as one JSON document per workflow.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (r *WorkflowRepository) dir(organizationID string) string {
	return filepath.Join(r.root, "organizations", organizationID, "workflows")
}

func (r *WorkflowRepository) path(organizationID, workflowID string) string {
	return filepath.Join(r.dir(organizationID), workflowID+".json")
}

func (r *WorkflowRepository) WorkflowByID(_ context.Context, organizationID, workflowID string) (*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(organizationID, workflowID)
}

func (r *WorkflowRepository) load(organizationID, workflowID string) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	found, err := readDocument(r.path(organizationID, workflowID), workflow)
	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, err)
	}

	if !found {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Workflows lists a tenant's workflows sorted by creation time, newest first.
func (r *WorkflowRepository) Workflows(_ context.Context, organizationID string) ([]*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := fs.Glob(os.DirFS(r.dir(organizationID)), "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("Workflows", organizationID, err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		workflowID := strings.TrimSuffix(entry, ".json")

		workflow, err := r.load(organizationID, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(workflow)
}

func (r *WorkflowRepository) save(workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	err := writeDocument(r.path(workflow.OrganizationID, workflow.ID), workflow)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// ArchiveWorkflow soft-deletes: the document stays on disk with an archived
// status and timestamp.
func (r *WorkflowRepository) ArchiveWorkflow(_ context.Context, organizationID, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, err := r.load(organizationID, workflowID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusArchived
	workflow.ArchivedAt = &now

	return r.save(workflow)
}

// RecordWorkflowOutcome folds one finished execution into the workflow's
// counters. The read-modify-write runs under the repository mutex.
func (r *WorkflowRepository) RecordWorkflowOutcome(_ context.Context, organizationID, workflowID string, success bool, durationMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, err := r.load(organizationID, workflowID)
	if err != nil {
		return err
	}

	workflow.AvgExecutionMs = runningMean(workflow.AvgExecutionMs, workflow.TotalExecutions, durationMs)
	workflow.TotalExecutions++

	if success {
		workflow.SuccessfulExecutions++
	} else {
		workflow.FailedExecutions++
	}

	now := time.Now().UTC()
	workflow.LastRunAt = &now

	return r.save(workflow)
}
