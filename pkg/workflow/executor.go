package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/otelhelper"
	"github.com/atlasfit/automation/pkg/protocol"
	"github.com/atlasfit/automation/pkg/registry"
	"github.com/atlasfit/automation/pkg/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoTriggerNode is returned when the workflow graph has no trigger node to
// start the walk from.
var ErrNoTriggerNode = errors.New("workflow has no trigger node")

// Result is the uniform outcome of one graph walk.
type Result struct {
	Success      bool
	Output       map[string]any
	Error        string
	Steps        []*models.ExecutionStep
	ProcessingMs int64
}

// Executor walks a workflow graph from its trigger node, executing each node
// through the registry and recording a step trace. Node failures are handled
// per the workflow's error handling setting.
type Executor struct {
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	retryConfig retry.Config

	// now is swapped in tests for deterministic timings.
	now func() time.Time
}

func NewExecutor(reg *registry.Registry, logger *slog.Logger) *Executor {
	return &Executor{
		registry:    reg,
		logger:      logger.With("module", "workflow_executor"),
		tracer:      otel.Tracer("workflow-executor"),
		retryConfig: retry.DefaultConfig(),
		now:         time.Now,
	}
}

// Execute runs the workflow for one execution. It always returns a Result
// with a complete step trace; the error return is reserved for malformed
// graphs that never started.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, execution *models.Execution) (*Result, error) {
	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"organization_id", workflow.OrganizationID,
	)
	logger.InfoContext(ctx, "Starting workflow execution")

	trigger := workflow.TriggerNode()
	if trigger == nil {
		return nil, ErrNoTriggerNode
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		otelhelper.OrganizationAttr(workflow.OrganizationID),
		otelhelper.WorkflowAttr(workflow.ID),
		otelhelper.ExecutionAttr(execution.ID),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, workflow.Settings.Deadline())
	defer cancel()

	started := e.now()
	executionCtx := models.NewExecutionContext(execution, workflow)
	walk := &graphWalk{
		workflow:     workflow,
		executionCtx: executionCtx,
		mode:         workflow.Settings.ErrorHandling,
		result:       &Result{Success: true},
	}

	walk.visit(trigger.ID)

	e.run(ctx, walk, logger)

	walk.result.Output = executionCtx.StepOutputs
	walk.result.ProcessingMs = e.now().Sub(started).Milliseconds()

	if walk.result.Success {
		logger.InfoContext(ctx, "Workflow execution completed",
			"steps", len(walk.result.Steps),
			"duration_ms", walk.result.ProcessingMs,
		)
	} else {
		otelhelper.SetError(span, errors.New(walk.result.Error))
		logger.WarnContext(ctx, "Workflow execution failed",
			"error", walk.result.Error,
			"steps", len(walk.result.Steps),
			"duration_ms", walk.result.ProcessingMs,
		)
	}

	return walk.result, nil
}

// graphWalk carries the mutable state of one execution's traversal.
type graphWalk struct {
	workflow     *models.Workflow
	executionCtx *models.ExecutionContext
	mode         models.ErrorHandlingMode
	result       *Result

	queue   []string
	visited map[string]bool
}

// visit enqueues a node once; revisits are ignored, which also bounds walks
// over graphs with cycles.
func (w *graphWalk) visit(nodeID string) {
	if w.visited == nil {
		w.visited = make(map[string]bool)
	}

	if w.visited[nodeID] {
		return
	}

	w.visited[nodeID] = true
	w.queue = append(w.queue, nodeID)
}

func (w *graphWalk) next() (string, bool) {
	if len(w.queue) == 0 {
		return "", false
	}

	nodeID := w.queue[0]
	w.queue = w.queue[1:]

	return nodeID, true
}

// enqueueDownstream follows outgoing edges in declared order. When handle is
// set, only matching edges (plus unconditional ones) are followed.
func (w *graphWalk) enqueueDownstream(nodeID, handle string) {
	for _, edge := range w.workflow.EdgesFrom(nodeID) {
		if handle != "" && edge.SourceHandle != "" && edge.SourceHandle != handle {
			continue
		}

		w.visit(edge.Target)
	}
}

func (e *Executor) run(ctx context.Context, walk *graphWalk, logger *slog.Logger) {
	for {
		nodeID, ok := walk.next()
		if !ok {
			return
		}

		if err := ctx.Err(); err != nil {
			walk.result.Success = false
			walk.result.Error = fmt.Sprintf("execution timed out: %v", err)

			return
		}

		node := walk.workflow.NodeByID(nodeID)
		if node == nil {
			walk.result.Success = false
			walk.result.Error = fmt.Sprintf("node '%s' not found in workflow graph", nodeID)

			return
		}

		if !node.Enabled {
			logger.InfoContext(ctx, "Node is disabled, skipping", "node_id", node.ID)
			walk.result.Steps = append(walk.result.Steps, &models.ExecutionStep{
				NodeID:    node.ID,
				NodeType:  node.Type,
				NodeName:  node.Name,
				Status:    models.StepStatusSkipped,
				StartedAt: e.now(),
			})
			walk.enqueueDownstream(node.ID, "")

			continue
		}

		if node.Type == models.NodeTypeTrigger {
			walk.result.Steps = append(walk.result.Steps, &models.ExecutionStep{
				NodeID:    node.ID,
				NodeType:  node.Type,
				NodeName:  node.Name,
				Status:    models.StepStatusSuccess,
				Output:    walk.executionCtx.TriggerData,
				StartedAt: e.now(),
			})
			walk.enqueueDownstream(node.ID, "")

			continue
		}

		if !e.runNode(ctx, walk, node, logger) {
			return
		}
	}
}

// runNode executes one node and applies the error handling policy. It reports
// whether the walk should continue.
func (e *Executor) runNode(ctx context.Context, walk *graphWalk, node *models.WorkflowNode, logger *slog.Logger) bool {
	logger = logger.With("node_id", node.ID, "node_type", node.Type)
	logger.InfoContext(ctx, "Executing node")

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		otelhelper.NodeAttrs(node.ID, string(node.Type))...,
	)
	defer span.End()

	step := &models.ExecutionStep{
		NodeID:    node.ID,
		NodeType:  node.Type,
		NodeName:  node.Name,
		StartedAt: e.now(),
	}

	nodeResult, err := e.attempt(ctx, walk, node, step, logger)

	step.DurationMs = e.now().Sub(step.StartedAt).Milliseconds()

	if err != nil {
		step.Status = models.StepStatusFailed
		step.Error = err.Error()
		walk.result.Steps = append(walk.result.Steps, step)
		otelhelper.SetError(span, err)

		if walk.mode == models.ErrorHandlingContinue {
			logger.WarnContext(ctx, "Node failed, continuing remaining branches", "error", err)

			return true
		}

		walk.result.Success = false
		walk.result.Error = fmt.Sprintf("node '%s' failed: %v", node.ID, err)

		return false
	}

	step.Status = models.StepStatusSuccess
	step.Output = nodeResult.Output

	if nodeResult.Retries > step.Retries {
		step.Retries = nodeResult.Retries
	}

	walk.result.Steps = append(walk.result.Steps, step)
	walk.executionCtx.StepOutputs[node.ID] = nodeResult.Output

	if nodeResult.Stop {
		logger.InfoContext(ctx, "Node stopped its branch", "node_id", node.ID)

		return true
	}

	walk.enqueueDownstream(node.ID, nodeResult.Handle)

	return true
}

// attempt runs the node once, or under the backoff client when the workflow's
// error handling is set to retry.
func (e *Executor) attempt(ctx context.Context, walk *graphWalk, node *models.WorkflowNode, step *models.ExecutionStep, logger *slog.Logger) (*protocol.NodeResult, error) {
	instance, err := e.registry.CreateNode(string(node.Type), node.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	if walk.mode != models.ErrorHandlingRetry {
		return instance.Execute(ctx, walk.executionCtx, logger)
	}

	var nodeResult *protocol.NodeResult

	client := retry.NewClient(e.retryConfig)
	result := client.Do(ctx, func(ctx context.Context) (map[string]any, error) {
		var execErr error
		nodeResult, execErr = instance.Execute(ctx, walk.executionCtx, logger)
		if execErr != nil {
			return nil, execErr
		}

		return nodeResult.Output, nil
	})

	step.Retries = result.Retries

	if !result.Success {
		return nil, result.Err
	}

	return nodeResult, nil
}
