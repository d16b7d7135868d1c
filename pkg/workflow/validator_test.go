package workflow

import (
	"testing"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow(orgID string) *models.Workflow {
	triggerID := uuid.New().String()
	actionID := uuid.New().String()

	return &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           "member onboarding",
		Status:         models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: triggerID, Type: models.NodeTypeTrigger, Enabled: true},
			{ID: actionID, Type: models.NodeTypeAction, Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: triggerID, Target: actionID},
		},
		Settings: models.WorkflowSettings{
			ErrorHandling:       models.ErrorHandlingContinue,
			MaxExecutionTimeSec: 300,
		},
	}
}

func TestValidateGraph_Valid(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	result := validator.ValidateGraph(validWorkflow(orgID), orgID)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateGraph_TenantMismatch(t *testing.T) {
	validator := NewValidator()
	workflow := validWorkflow(uuid.New().String())

	result := validator.ValidateGraph(workflow, uuid.New().String())

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "organization_id mismatch")
	assert.Same(t, workflow, result.Data, "workflow is returned even when invalid")
}

func TestValidateGraph_NodeErrors(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Nodes[1].ID = "not-a-uuid"
	workflow.Nodes[1].Type = "teleport"
	workflow.Edges = nil

	result := validator.ValidateGraph(workflow, orgID)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "nodes[1]: id must be a valid UUID")
	assert.Contains(t, result.Errors, "nodes[1]: invalid node type 'teleport'")
}

func TestValidateGraph_DuplicateNodeID(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Nodes[1].ID = workflow.Nodes[0].ID
	workflow.Nodes[1].Type = models.NodeTypeAction
	workflow.Edges = nil

	result := validator.ValidateGraph(workflow, orgID)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "duplicate node id")
}

func TestValidateGraph_DanglingEdges(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Edges = append(workflow.Edges, &models.Edge{
		ID:     "e2",
		Source: workflow.Nodes[1].ID,
		Target: uuid.New().String(),
	})

	result := validator.ValidateGraph(workflow, orgID)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "does not reference an existing node")
}

func TestValidateGraph_MultipleTriggers(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Nodes = append(workflow.Nodes, &models.WorkflowNode{
		ID:   uuid.New().String(),
		Type: models.NodeTypeTrigger,
	})

	result := validator.ValidateGraph(workflow, orgID)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "trigger nodes")
}

func TestValidateGraph_NoTriggerWarns(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Nodes = workflow.Nodes[1:]
	workflow.Edges = nil

	result := validator.ValidateGraph(workflow, orgID)

	assert.True(t, result.Valid, "missing trigger is a warning, not an error")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no trigger node")
}

func TestValidateGraph_SettingsErrors(t *testing.T) {
	orgID := uuid.New().String()
	validator := NewValidator()

	workflow := validWorkflow(orgID)
	workflow.Settings.ErrorHandling = "explode"
	workflow.Settings.MaxExecutionTimeSec = 999999

	result := validator.ValidateGraph(workflow, orgID)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}
