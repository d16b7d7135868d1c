package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Persistence {
	t.Helper()

	store := NewPersistence(t.TempDir())
	require.NoError(t, store.HealthCheck(context.Background()))

	return store
}

func TestWebhookRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	webhook := &models.Webhook{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		WorkflowID:     uuid.New().String(),
		Secret:         "whsec_abc123",
		Active:         true,
	}

	require.NoError(t, store.SaveWebhook(ctx, webhook))

	loaded, err := store.WebhookByID(ctx, orgID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, webhook.ID, loaded.ID)
	assert.Equal(t, "whsec_abc123", loaded.Secret, "secret survives the store despite being hidden from JSON responses")
	assert.True(t, loaded.Active)
}

func TestWebhookByID_NotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.WebhookByID(context.Background(), uuid.New().String(), uuid.New().String())

	assert.True(t, persistence.IsWebhookNotFound(err))
}

func TestWebhookByID_TenantIsolation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	webhook := &models.Webhook{ID: uuid.New().String(), OrganizationID: orgID, WorkflowID: "wf"}
	require.NoError(t, store.SaveWebhook(ctx, webhook))

	_, err := store.WebhookByID(ctx, uuid.New().String(), webhook.ID)
	assert.True(t, persistence.IsWebhookNotFound(err), "another tenant's id never resolves")
}

func TestRecordWebhookCounters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	webhook := &models.Webhook{ID: uuid.New().String(), OrganizationID: orgID, WorkflowID: "wf"}
	require.NoError(t, store.SaveWebhook(ctx, webhook))

	require.NoError(t, store.RecordWebhookRequest(ctx, orgID, webhook.ID))
	require.NoError(t, store.RecordWebhookOutcome(ctx, orgID, webhook.ID, true, 100))
	require.NoError(t, store.RecordWebhookRequest(ctx, orgID, webhook.ID))
	require.NoError(t, store.RecordWebhookOutcome(ctx, orgID, webhook.ID, false, 300))

	loaded, err := store.WebhookByID(ctx, orgID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.TotalRequests)
	assert.Equal(t, int64(1), loaded.SuccessfulExecutions)
	assert.Equal(t, int64(1), loaded.FailedExecutions)
	assert.InDelta(t, 200.0, loaded.AvgProcessingMs, 0.001, "running weighted mean")
	assert.NotNil(t, loaded.LastTriggeredAt)
}

func TestWorkflowRoundTripAndList(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	first := &models.Workflow{ID: uuid.New().String(), OrganizationID: orgID, Name: "first", Status: models.WorkflowStatusActive}
	require.NoError(t, store.SaveWorkflow(ctx, first))

	second := &models.Workflow{ID: uuid.New().String(), OrganizationID: orgID, Name: "second", Status: models.WorkflowStatusDraft}
	second.CreatedAt = time.Now().UTC().Add(time.Minute)
	require.NoError(t, store.SaveWorkflow(ctx, second))

	workflows, err := store.Workflows(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "second", workflows[0].Name, "newest first")
}

func TestArchiveWorkflow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	workflow := &models.Workflow{ID: uuid.New().String(), OrganizationID: orgID, Name: "wf", Status: models.WorkflowStatusActive}
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	require.NoError(t, store.ArchiveWorkflow(ctx, orgID, workflow.ID))

	loaded, err := store.WorkflowByID(ctx, orgID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, loaded.Status)
	assert.NotNil(t, loaded.ArchivedAt, "archive is a soft delete, the record remains")
}

func TestRecordWorkflowOutcome_RunningMean(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	workflow := &models.Workflow{ID: uuid.New().String(), OrganizationID: orgID, Name: "wf"}
	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	require.NoError(t, store.RecordWorkflowOutcome(ctx, orgID, workflow.ID, true, 100))
	require.NoError(t, store.RecordWorkflowOutcome(ctx, orgID, workflow.ID, true, 200))
	require.NoError(t, store.RecordWorkflowOutcome(ctx, orgID, workflow.ID, false, 600))

	loaded, err := store.WorkflowByID(ctx, orgID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.TotalExecutions)
	assert.Equal(t, int64(2), loaded.SuccessfulExecutions)
	assert.Equal(t, int64(1), loaded.FailedExecutions)
	assert.InDelta(t, 300.0, loaded.AvgExecutionMs, 0.001)
	assert.NotNil(t, loaded.LastRunAt)
}

func TestCompleteExecution_ExactlyOnce(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	execution := &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     uuid.New().String(),
		OrganizationID: orgID,
		Status:         models.ExecutionStatusRunning,
	}
	require.NoError(t, store.CreateExecution(ctx, execution))

	terminal := *execution
	terminal.Status = models.ExecutionStatusCompleted
	terminal.ProcessingMs = 120

	require.NoError(t, store.CompleteExecution(ctx, &terminal))

	loaded, err := store.ExecutionByID(ctx, orgID, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)

	err = store.CompleteExecution(ctx, &terminal)
	assert.True(t, persistence.IsExecutionAlreadyTerminal(err), "second terminal update is rejected")
}

func TestCompleteExecution_RequiresTerminalStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	execution := &models.Execution{ID: uuid.New().String(), OrganizationID: orgID, Status: models.ExecutionStatusRunning}
	require.NoError(t, store.CreateExecution(ctx, execution))

	err := store.CompleteExecution(ctx, execution)
	assert.Error(t, err)
}

func TestExecutionsByWorkflow_LimitAndOrder(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()
	workflowID := uuid.New().String()

	base := time.Now().UTC()

	for i := range 3 {
		execution := &models.Execution{
			ID:             uuid.New().String(),
			WorkflowID:     workflowID,
			OrganizationID: orgID,
			Status:         models.ExecutionStatusRunning,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateExecution(ctx, execution))
	}

	other := &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     uuid.New().String(),
		OrganizationID: orgID,
		Status:         models.ExecutionStatusRunning,
		CreatedAt:      base,
	}
	require.NoError(t, store.CreateExecution(ctx, other))

	executions, err := store.ExecutionsByWorkflow(ctx, orgID, workflowID, 2)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.True(t, executions[0].CreatedAt.After(executions[1].CreatedAt))
}

func TestAppendSecurityViolation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	for range 2 {
		err := store.AppendSecurityViolation(ctx, &models.SecurityViolation{
			OrganizationID: orgID,
			WebhookID:      "wh-1",
			ViolationType:  models.ViolationValidationFailed,
			Details:        map[string]any{"errors": []string{"invalid signature"}},
		})
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(store.root, "organizations", orgID, "security_violations.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var violation models.SecurityViolation
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &violation))
	assert.Equal(t, models.ViolationValidationFailed, violation.ViolationType)
	assert.NotEmpty(t, violation.ID)
	assert.False(t, violation.CreatedAt.IsZero())
}
