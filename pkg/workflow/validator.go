// Package workflow validates and executes workflow graphs.
package workflow

import (
	"fmt"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Validator checks a typed workflow for structural correctness before it is
// saved or activated. It never mutates the workflow; coercion of raw input
// belongs to the sanitizer.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateGraph verifies the workflow belongs to the caller's organization and
// that its node/edge graph is well formed. The workflow is returned as the
// result's Data regardless of validity so callers can redisplay it.
func (v *Validator) ValidateGraph(workflow *models.Workflow, organizationID string) *models.ValidationResult {
	result := models.NewValidationResult()
	result.Data = workflow

	if workflow == nil {
		result.AddError("workflow is required")

		return result
	}

	if workflow.OrganizationID != organizationID {
		result.AddError("organization_id mismatch: workflow does not belong to this organization")

		return result
	}

	if err := v.validate.Var(workflow.OrganizationID, "required,uuid4"); err != nil {
		result.AddError("organization_id must be a valid UUID")
	}

	if workflow.Name == "" {
		result.AddError("name is required")
	}

	if workflow.Status != "" && !models.ValidWorkflowStatus(string(workflow.Status)) {
		result.AddError(fmt.Sprintf("invalid status '%s'", workflow.Status))
	}

	v.validateNodes(workflow, result)
	v.validateEdges(workflow, result)
	v.validateVariables(workflow, result)
	v.validateSettings(workflow, result)

	return result
}

func (v *Validator) validateNodes(workflow *models.Workflow, result *models.ValidationResult) {
	seen := make(map[string]bool, len(workflow.Nodes))
	triggers := 0

	for i, node := range workflow.Nodes {
		if node == nil {
			result.AddError(fmt.Sprintf("nodes[%d]: node is required", i))

			continue
		}

		if err := v.validate.Var(node.ID, "required,uuid4"); err != nil {
			result.AddError(fmt.Sprintf("nodes[%d]: id must be a valid UUID", i))
		} else if seen[node.ID] {
			result.AddError(fmt.Sprintf("nodes[%d]: duplicate node id '%s'", i, node.ID))
		} else {
			seen[node.ID] = true
		}

		if !models.ValidNodeType(string(node.Type)) {
			result.AddError(fmt.Sprintf("nodes[%d]: invalid node type '%s'", i, node.Type))
		}

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}

		if node.PositionX < 0 || node.PositionX > models.MaxNodePosition ||
			node.PositionY < 0 || node.PositionY > models.MaxNodePosition {
			result.AddWarning(fmt.Sprintf("nodes[%d]: position outside canvas bounds", i))
		}
	}

	if len(workflow.Nodes) > 0 && triggers == 0 {
		result.AddWarning("workflow has no trigger node and cannot be started by a webhook")
	}

	if triggers > 1 {
		result.AddError(fmt.Sprintf("workflow has %d trigger nodes, at most one is allowed", triggers))
	}
}

func (v *Validator) validateEdges(workflow *models.Workflow, result *models.ValidationResult) {
	for i, edge := range workflow.Edges {
		if edge == nil {
			result.AddError(fmt.Sprintf("edges[%d]: edge is required", i))

			continue
		}

		if edge.Source == "" {
			result.AddError(fmt.Sprintf("edges[%d]: source is required", i))
		} else if workflow.NodeByID(edge.Source) == nil {
			result.AddError(fmt.Sprintf("edges[%d]: source '%s' does not reference an existing node", i, edge.Source))
		}

		if edge.Target == "" {
			result.AddError(fmt.Sprintf("edges[%d]: target is required", i))
		} else if workflow.NodeByID(edge.Target) == nil {
			result.AddError(fmt.Sprintf("edges[%d]: target '%s' does not reference an existing node", i, edge.Target))
		}
	}
}

func (v *Validator) validateVariables(workflow *models.Workflow, result *models.ValidationResult) {
	for i, variable := range workflow.Variables {
		if variable == nil || variable.Name == "" {
			result.AddError(fmt.Sprintf("variables[%d]: name is required", i))

			continue
		}

		if variable.Scope != "" && !models.ValidVariableScope(string(variable.Scope)) {
			result.AddError(fmt.Sprintf("variables[%d]: invalid scope '%s'", i, variable.Scope))
		}
	}
}

func (v *Validator) validateSettings(workflow *models.Workflow, result *models.ValidationResult) {
	settings := workflow.Settings

	if settings.ErrorHandling != "" && !models.ValidErrorHandlingMode(string(settings.ErrorHandling)) {
		result.AddError(fmt.Sprintf("settings: invalid error_handling '%s'", settings.ErrorHandling))
	}

	if settings.MaxExecutionTimeSec != 0 &&
		(settings.MaxExecutionTimeSec < models.MinExecutionTimeSec ||
			settings.MaxExecutionTimeSec > models.MaxExecutionTimeSec) {
		result.AddError(fmt.Sprintf("settings: max_execution_time_sec must be between %d and %d",
			models.MinExecutionTimeSec, models.MaxExecutionTimeSec))
	}
}
