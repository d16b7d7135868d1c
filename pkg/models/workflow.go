// Package models defines the core domain models for the automation pipeline.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable by webhook triggers
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Soft-deleted, kept for history
)

// ValidWorkflowStatus reports whether s is one of the known workflow statuses.
func ValidWorkflowStatus(s string) bool {
	switch WorkflowStatus(s) {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusPaused, WorkflowStatusArchived:
		return true
	}

	return false
}

// ErrorHandlingMode governs what the executor does when a node fails.
type ErrorHandlingMode string

const (
	ErrorHandlingContinue ErrorHandlingMode = "continue" // Record the failure, keep walking remaining branches
	ErrorHandlingStop     ErrorHandlingMode = "stop"     // Abort the execution, mark it failed
	ErrorHandlingRetry    ErrorHandlingMode = "retry"    // Re-attempt the node with backoff, then stop
)

// ValidErrorHandlingMode reports whether m is one of the known modes.
func ValidErrorHandlingMode(m string) bool {
	switch ErrorHandlingMode(m) {
	case ErrorHandlingContinue, ErrorHandlingStop, ErrorHandlingRetry:
		return true
	}

	return false
}

// VariableScope defines where a workflow variable is resolved from.
type VariableScope string

const (
	VariableScopeWorkflow     VariableScope = "workflow"
	VariableScopeOrganization VariableScope = "organization"
	VariableScopeGlobal       VariableScope = "global"
)

// ValidVariableScope reports whether s is one of the known scopes.
func ValidVariableScope(s string) bool {
	switch VariableScope(s) {
	case VariableScopeWorkflow, VariableScopeOrganization, VariableScopeGlobal:
		return true
	}

	return false
}

// Variable is a named value available to nodes during execution.
type Variable struct {
	Name  string        `json:"name"  validate:"required"`
	Value any           `json:"value"`
	Scope VariableScope `json:"scope"`
}

// Bounds for workflow settings.
const (
	MinExecutionTimeSec = 1
	MaxExecutionTimeSec = 3600
)

// WorkflowSettings carries per-workflow execution policy.
type WorkflowSettings struct {
	ErrorHandling       ErrorHandlingMode `json:"error_handling"`
	MaxExecutionTimeSec int               `json:"max_execution_time_sec"`
	Timezone            string            `json:"timezone,omitempty"`
	NotifyOnFailure     bool              `json:"notify_on_failure"`
	NotifyOnSuccess     bool              `json:"notify_on_success"`
}

// Deadline returns the wall-clock budget for one execution of the workflow.
func (s WorkflowSettings) Deadline() time.Duration {
	secs := s.MaxExecutionTimeSec
	if secs < MinExecutionTimeSec {
		secs = MinExecutionTimeSec
	}

	if secs > MaxExecutionTimeSec {
		secs = MaxExecutionTimeSec
	}

	return time.Duration(secs) * time.Second
}

// Workflow is a directed node graph owned by exactly one organization.
// Identity is (ID, OrganizationID); every mutation must present both.
type Workflow struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id" validate:"required,uuid4"`
	Name           string           `json:"name"            validate:"required"`
	Description    string           `json:"description"`
	Status         WorkflowStatus   `json:"status"`
	Nodes          []*WorkflowNode  `json:"nodes"`
	Edges          []*Edge          `json:"edges"`
	Variables      []*Variable      `json:"variables,omitempty"`
	Settings       WorkflowSettings `json:"settings"`

	TotalExecutions      int64      `json:"total_executions"`
	SuccessfulExecutions int64      `json:"successful_executions"`
	FailedExecutions     int64      `json:"failed_executions"`
	AvgExecutionMs       float64    `json:"avg_execution_time_ms"`
	LastRunAt            *time.Time `json:"last_run_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// TriggerNode returns the workflow's trigger node, or nil when the graph has none.
func (w *Workflow) TriggerNode() *WorkflowNode {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// NodeByID looks a node up by its id.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EdgesFrom returns the outgoing edges of a node in declared order.
func (w *Workflow) EdgesFrom(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}
