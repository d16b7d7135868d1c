package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/nodes/condition"
	"github.com/atlasfit/automation/pkg/nodes/filter"
	"github.com/atlasfit/automation/pkg/nodes/lognode"
	"github.com/atlasfit/automation/pkg/nodes/transform"
	"github.com/atlasfit/automation/pkg/nodes/wait"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/registry"
	"github.com/atlasfit/automation/pkg/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNode struct {
	calls *int
}

func (n *failingNode) Execute(_ context.Context, _ *models.ExecutionContext, _ *slog.Logger) (*protocol.NodeResult, error) {
	*n.calls++

	return nil, errors.New("downstream system unavailable")
}

type failingFactory struct {
	calls int
}

func (*failingFactory) ID() string {
	return "action"
}

func (f *failingFactory) Create(_ map[string]any) (protocol.Node, error) {
	return &failingNode{calls: &f.calls}, nil
}

func testRegistry(t *testing.T, extra ...protocol.NodeFactory) *registry.Registry {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg := registry.NewRegistry(logger)
	reg.RegisterNode(condition.NewFactory())
	reg.RegisterNode(filter.NewFactory())
	reg.RegisterNode(transform.NewFactory())
	reg.RegisterNode(wait.NewFactory())

	for _, factory := range extra {
		reg.RegisterNode(factory)
	}

	return reg
}

func testExecutor(t *testing.T, extra ...protocol.NodeFactory) *Executor {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	executor := NewExecutor(testRegistry(t, extra...), logger)
	executor.retryConfig = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	return executor
}

func linearWorkflow(mode models.ErrorHandlingMode, nodes ...*models.WorkflowNode) *models.Workflow {
	trigger := &models.WorkflowNode{ID: uuid.New().String(), Type: models.NodeTypeTrigger, Enabled: true}
	all := append([]*models.WorkflowNode{trigger}, nodes...)

	edges := make([]*models.Edge, 0, len(nodes))
	for i := 1; i < len(all); i++ {
		edges = append(edges, &models.Edge{
			ID:     uuid.New().String(),
			Source: all[i-1].ID,
			Target: all[i].ID,
		})
	}

	return &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: uuid.New().String(),
		Name:           "test flow",
		Status:         models.WorkflowStatusActive,
		Nodes:          all,
		Edges:          edges,
		Settings: models.WorkflowSettings{
			ErrorHandling:       mode,
			MaxExecutionTimeSec: 30,
		},
	}
}

func newExecution(workflow *models.Workflow, input map[string]any) *models.Execution {
	return &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		OrganizationID: workflow.OrganizationID,
		Status:         models.ExecutionStatusRunning,
		Input:          input,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestExecute_LinearFlowInOrder(t *testing.T) {
	executor := testExecutor(t, lognode.NewFactory())

	first := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: true,
		Config: map[string]any{"message": "hello {{.trigger_data.name}}"},
	}
	second := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `{"greeted": "{{.trigger_data.name}}"}`},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, first, second)
	execution := newExecution(workflow, map[string]any{"name": "Sam"})

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, models.NodeTypeTrigger, result.Steps[0].NodeType)
	assert.Equal(t, first.ID, result.Steps[1].NodeID)
	assert.Equal(t, second.ID, result.Steps[2].NodeID)
	assert.Equal(t, "hello Sam", result.Steps[1].Output["message"])
	assert.Contains(t, result.Output, second.ID)
}

func TestExecute_ConditionRoutesTrueBranch(t *testing.T) {
	executor := testExecutor(t)

	cond := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeCondition, Enabled: true,
		Config: map[string]any{"expression": `{{eq .trigger_data.plan "gold"}}`},
	}
	onTrue := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `taken`},
	}
	onFalse := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `not taken`},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, cond)
	workflow.Nodes = append(workflow.Nodes, onTrue, onFalse)
	workflow.Edges = append(workflow.Edges,
		&models.Edge{ID: "t", Source: cond.ID, Target: onTrue.ID, SourceHandle: models.EdgeHandleTrue},
		&models.Edge{ID: "f", Source: cond.ID, Target: onFalse.ID, SourceHandle: models.EdgeHandleFalse},
	)

	execution := newExecution(workflow, map[string]any{"plan": "gold"})

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, onTrue.ID)
	assert.NotContains(t, result.Output, onFalse.ID)
}

func TestExecute_ErrorHandlingContinue(t *testing.T) {
	factory := &failingFactory{}
	executor := testExecutor(t, factory)

	failing := &models.WorkflowNode{ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: true}
	after := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `still ran`},
	}

	workflow := linearWorkflow(models.ErrorHandlingContinue, failing)
	trigger := workflow.TriggerNode()
	workflow.Nodes = append(workflow.Nodes, after)
	workflow.Edges = append(workflow.Edges, &models.Edge{ID: "b", Source: trigger.ID, Target: after.ID})

	execution := newExecution(workflow, nil)

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.True(t, result.Success, "continue mode finishes the walk")
	assert.Equal(t, 1, factory.calls)
	assert.Contains(t, result.Output, after.ID, "independent branch still ran")

	var failed *models.ExecutionStep

	for _, step := range result.Steps {
		if step.NodeID == failing.ID {
			failed = step
		}
	}

	require.NotNil(t, failed)
	assert.Equal(t, models.StepStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "downstream system unavailable")
}

func TestExecute_ErrorHandlingStop(t *testing.T) {
	factory := &failingFactory{}
	executor := testExecutor(t, factory)

	failing := &models.WorkflowNode{ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: true}
	after := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `unreachable`},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, failing, after)
	execution := newExecution(workflow, nil)

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "downstream system unavailable")
	assert.Equal(t, 1, factory.calls)
	assert.NotContains(t, result.Output, after.ID)
}

func TestExecute_ErrorHandlingRetry(t *testing.T) {
	factory := &failingFactory{}
	executor := testExecutor(t, factory)

	failing := &models.WorkflowNode{ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: true}

	workflow := linearWorkflow(models.ErrorHandlingRetry, failing)
	execution := newExecution(workflow, nil)

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, factory.calls, "initial attempt plus two retries")
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 2, result.Steps[1].Retries)
}

func TestExecute_TimeoutEnforced(t *testing.T) {
	executor := testExecutor(t)

	waiting := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeWait, Enabled: true,
		Config: map[string]any{"duration_sec": float64(10)},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, waiting)
	workflow.Settings.MaxExecutionTimeSec = 1
	execution := newExecution(workflow, nil)

	started := time.Now()
	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Less(t, time.Since(started), 5*time.Second, "deadline bounds the wait node")
}

func TestExecute_DisabledNodeSkipped(t *testing.T) {
	executor := testExecutor(t)

	disabled := &models.WorkflowNode{ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: false}
	after := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `ran`},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, disabled, after)
	execution := newExecution(workflow, nil)

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.StepStatusSkipped, result.Steps[1].Status)
	assert.Contains(t, result.Output, after.ID, "downstream of a skipped node still runs")
}

func TestExecute_FilterStopsBranch(t *testing.T) {
	executor := testExecutor(t)

	filterNode := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeFilter, Enabled: true,
		Config: map[string]any{"expression": `{{eq .trigger_data.plan "gold"}}`},
	}
	after := &models.WorkflowNode{
		ID: uuid.New().String(), Type: models.NodeTypeTransform, Enabled: true,
		Config: map[string]any{"expression": `unreachable`},
	}

	workflow := linearWorkflow(models.ErrorHandlingStop, filterNode, after)
	execution := newExecution(workflow, map[string]any{"plan": "basic"})

	result, err := executor.Execute(context.Background(), workflow, execution)

	require.NoError(t, err)
	assert.True(t, result.Success, "a filtered-out event is not a failure")
	assert.NotContains(t, result.Output, after.ID)
}

func TestExecute_NoTriggerNode(t *testing.T) {
	executor := testExecutor(t)

	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		OrganizationID: uuid.New().String(),
		Nodes: []*models.WorkflowNode{
			{ID: uuid.New().String(), Type: models.NodeTypeAction, Enabled: true},
		},
	}
	execution := newExecution(workflow, nil)

	_, err := executor.Execute(context.Background(), workflow, execution)

	assert.ErrorIs(t, err, ErrNoTriggerNode)
}
