package sanitize

import (
	"fmt"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/google/uuid"
)

// ValidateWorkflowData validates and sanitizes a raw workflow object, as
// produced by the builder UI, against the caller's organization. The sanitized
// workflow is returned on the result even when validation fails, so callers
// can redisplay the cleaned input; an invalid result must never be persisted
// or executed.
func (s *Sanitizer) ValidateWorkflowData(raw map[string]any, organizationID string) *models.ValidationResult {
	result := models.NewValidationResult()

	if _, err := uuid.Parse(organizationID); err != nil {
		result.AddError("organization_id must be a valid UUID")

		return result
	}

	if raw == nil {
		result.AddError("workflow object is required")

		return result
	}

	workflow := &models.Workflow{OrganizationID: organizationID}
	result.Data = workflow

	if id, ok := raw["id"].(string); ok {
		workflow.ID = id
	}

	// Cross-tenant write attempt: the object's organization must be the
	// caller's, always a hard error.
	if rawOrg, present := raw["organization_id"]; present {
		org, ok := rawOrg.(string)
		if !ok || org != organizationID {
			result.AddError("organization_id mismatch: workflow does not belong to this organization")
		}
	}

	name, ok := raw["name"].(string)
	if !ok || name == "" {
		result.AddError("name is required and must be a string")
	} else {
		workflow.Name = s.sanitizeString(name, "name", result)
	}

	if desc, ok := raw["description"].(string); ok {
		workflow.Description = s.sanitizeString(desc, "description", result)
	}

	workflow.Status = coerceStatus(raw["status"], result)

	data, ok := raw["workflow_data"].(map[string]any)
	if !ok {
		result.AddError("workflow_data is required and must be an object")

		return result
	}

	workflow.Nodes = s.sanitizeNodes(data["nodes"], result)
	workflow.Edges = sanitizeEdges(data["edges"], workflow.Nodes, result)
	workflow.Variables = s.sanitizeVariables(data["variables"], result)
	workflow.Settings = s.sanitizeSettings(data["settings"], result)

	return result
}

func coerceStatus(v any, result *models.ValidationResult) models.WorkflowStatus {
	status, ok := v.(string)
	if !ok || status == "" {
		return models.WorkflowStatusDraft
	}

	if !models.ValidWorkflowStatus(status) {
		result.AddWarning(fmt.Sprintf("status: unknown value %q coerced to draft", status))

		return models.WorkflowStatusDraft
	}

	return models.WorkflowStatus(status)
}

func (s *Sanitizer) sanitizeNodes(v any, result *models.ValidationResult) []*models.WorkflowNode {
	if v == nil {
		result.AddError("workflow_data.nodes is required and must be an array")

		return nil
	}

	rawNodes, ok := v.([]any)
	if !ok {
		result.AddError("workflow_data.nodes must be an array")

		return nil
	}

	nodes := make([]*models.WorkflowNode, 0, len(rawNodes))

	for i, rawNode := range rawNodes {
		nodeMap, ok := rawNode.(map[string]any)
		if !ok {
			result.AddError(fmt.Sprintf("nodes[%d]: must be an object", i))

			continue
		}

		node := &models.WorkflowNode{Enabled: true}

		id, _ := nodeMap["id"].(string)
		if _, err := uuid.Parse(id); err != nil {
			result.AddError(fmt.Sprintf("nodes[%d]: id must be a valid UUID", i))
		}

		node.ID = id

		nodeType, _ := nodeMap["type"].(string)
		if !models.ValidNodeType(nodeType) {
			result.AddError(fmt.Sprintf("nodes[%d]: unknown node type %q", i, nodeType))
		}

		node.Type = models.NodeType(nodeType)

		if name, ok := nodeMap["name"].(string); ok {
			node.Name = s.sanitizeString(name, fmt.Sprintf("nodes[%d].name", i), result)
		}

		if enabled, ok := nodeMap["enabled"].(bool); ok {
			node.Enabled = enabled
		}

		node.PositionX = clampPosition(nodeMap["position_x"])
		node.PositionY = clampPosition(nodeMap["position_y"])

		if config, ok := nodeMap["config"].(map[string]any); ok {
			cleaned, _ := s.sanitizeValue(config, 0, fmt.Sprintf("nodes[%d].config", i), result).(map[string]any)
			node.Config = cleaned
		}

		nodes = append(nodes, node)
	}

	return nodes
}

func clampPosition(v any) float64 {
	pos, ok := v.(float64)
	if !ok {
		return 0
	}

	if pos < 0 {
		return 0
	}

	if pos > models.MaxNodePosition {
		return models.MaxNodePosition
	}

	return pos
}

// sanitizeEdges checks structural and referential integrity: every edge must
// carry non-empty endpoints and both must name an existing node.
func sanitizeEdges(v any, nodes []*models.WorkflowNode, result *models.ValidationResult) []*models.Edge {
	if v == nil {
		result.AddError("workflow_data.edges is required and must be an array")

		return nil
	}

	rawEdges, ok := v.([]any)
	if !ok {
		result.AddError("workflow_data.edges must be an array")

		return nil
	}

	nodeIDs := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		nodeIDs[node.ID] = struct{}{}
	}

	edges := make([]*models.Edge, 0, len(rawEdges))

	for i, rawEdge := range rawEdges {
		edgeMap, ok := rawEdge.(map[string]any)
		if !ok {
			result.AddError(fmt.Sprintf("edges[%d]: must be an object", i))

			continue
		}

		edge := &models.Edge{}
		edge.ID, _ = edgeMap["id"].(string)
		edge.Source, _ = edgeMap["source"].(string)
		edge.Target, _ = edgeMap["target"].(string)
		edge.SourceHandle, _ = edgeMap["source_handle"].(string)
		edge.TargetHandle, _ = edgeMap["target_handle"].(string)

		if edge.Source == "" {
			result.AddError(fmt.Sprintf("edges[%d]: source is required", i))
		} else if _, exists := nodeIDs[edge.Source]; !exists {
			result.AddError(fmt.Sprintf("edges[%d]: source %q does not reference an existing node", i, edge.Source))
		}

		if edge.Target == "" {
			result.AddError(fmt.Sprintf("edges[%d]: target is required", i))
		} else if _, exists := nodeIDs[edge.Target]; !exists {
			result.AddError(fmt.Sprintf("edges[%d]: target %q does not reference an existing node", i, edge.Target))
		}

		edges = append(edges, edge)
	}

	return edges
}

func (s *Sanitizer) sanitizeVariables(v any, result *models.ValidationResult) []*models.Variable {
	rawVars, ok := v.([]any)
	if !ok {
		return nil
	}

	variables := make([]*models.Variable, 0, len(rawVars))

	for i, rawVar := range rawVars {
		varMap, ok := rawVar.(map[string]any)
		if !ok {
			result.AddError(fmt.Sprintf("variables[%d]: must be an object", i))

			continue
		}

		variable := &models.Variable{}

		name, _ := varMap["name"].(string)
		if name == "" {
			result.AddError(fmt.Sprintf("variables[%d]: name is required", i))
		}

		variable.Name = s.sanitizeString(name, fmt.Sprintf("variables[%d].name", i), result)
		variable.Value = s.sanitizeValue(varMap["value"], 0, fmt.Sprintf("variables[%d].value", i), result)

		scope, _ := varMap["scope"].(string)
		if scope == "" || !models.ValidVariableScope(scope) {
			if scope != "" {
				result.AddWarning(fmt.Sprintf("variables[%d]: unknown scope %q coerced to workflow", i, scope))
			}

			variable.Scope = models.VariableScopeWorkflow
		} else {
			variable.Scope = models.VariableScope(scope)
		}

		variables = append(variables, variable)
	}

	return variables
}

func (s *Sanitizer) sanitizeSettings(v any, result *models.ValidationResult) models.WorkflowSettings {
	settings := models.WorkflowSettings{
		ErrorHandling:       models.ErrorHandlingContinue,
		MaxExecutionTimeSec: models.MaxExecutionTimeSec,
	}

	settingsMap, ok := v.(map[string]any)
	if !ok {
		return settings
	}

	if mode, ok := settingsMap["error_handling"].(string); ok && mode != "" {
		if models.ValidErrorHandlingMode(mode) {
			settings.ErrorHandling = models.ErrorHandlingMode(mode)
		} else {
			result.AddWarning(fmt.Sprintf("settings.error_handling: unknown value %q coerced to continue", mode))
		}
	}

	if maxTime, ok := settingsMap["max_execution_time_sec"].(float64); ok {
		secs := int(maxTime)
		if secs < models.MinExecutionTimeSec {
			secs = models.MinExecutionTimeSec
		}

		if secs > models.MaxExecutionTimeSec {
			secs = models.MaxExecutionTimeSec
		}

		settings.MaxExecutionTimeSec = secs
	}

	if tz, ok := settingsMap["timezone"].(string); ok {
		settings.Timezone = s.sanitizeString(tz, "settings.timezone", result)
	}

	if notify, ok := settingsMap["notify_on_failure"].(bool); ok {
		settings.NotifyOnFailure = notify
	}

	if notify, ok := settingsMap["notify_on_success"].(bool); ok {
		settings.NotifyOnSuccess = notify
	}

	return settings
}
