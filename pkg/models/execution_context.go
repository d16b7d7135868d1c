package models

// ExecutionContext is the mutable state threaded through one graph walk.
// StepOutputs is keyed by node id and only ever grows; nodes read upstream
// outputs through it and through templating.
type ExecutionContext struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	OrganizationID string         `json:"organization_id"`
	TriggerData    map[string]any `json:"trigger_data,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	StepOutputs    map[string]any `json:"step_outputs,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewExecutionContext seeds the context for one execution. Workflow variables
// are flattened by name; scope resolution happened at save time.
func NewExecutionContext(execution *Execution, workflow *Workflow) *ExecutionContext {
	variables := make(map[string]any, len(workflow.Variables))
	for _, variable := range workflow.Variables {
		variables[variable.Name] = variable.Value
	}

	return &ExecutionContext{
		ID:             execution.ID,
		WorkflowID:     workflow.ID,
		OrganizationID: workflow.OrganizationID,
		TriggerData:    execution.Input,
		Variables:      variables,
		StepOutputs:    make(map[string]any),
		Metadata:       make(map[string]any),
	}
}
