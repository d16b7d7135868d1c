package template

import (
	"testing"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *models.ExecutionContext {
	return &models.ExecutionContext{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		TriggerData: map[string]any{
			"lead": map[string]any{"name": "Jane", "email": "jane@example.com"},
		},
		Variables:   map[string]any{"gym_name": "Iron Temple"},
		StepOutputs: map[string]any{"lookup": map[string]any{"plan": "gold"}},
	}
}

func TestRenderWithContext_TriggerData(t *testing.T) {
	out, err := RenderWithContext("Hello {{.trigger_data.lead.name}} from {{.vars.gym_name}}", testContext())

	require.NoError(t, err)
	assert.Equal(t, "Hello Jane from Iron Temple", out)
}

func TestRenderWithContext_StepOutputs(t *testing.T) {
	out, err := RenderWithContext("{{.steps.lookup.plan}}", testContext())

	require.NoError(t, err)
	assert.Equal(t, "gold", out)
}

func TestRender_JSONOutput(t *testing.T) {
	out, err := RenderWithContext(`{"email": "{{.trigger_data.lead.email}}"}`, testContext())

	require.NoError(t, err)

	obj, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", obj["email"])
}

func TestRender_ScalarCoercion(t *testing.T) {
	num, err := Render("42", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(42), num)

	b, err := Render("true", nil)
	require.NoError(t, err)
	assert.Equal(t, true, b)
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{.broken", nil)
	assert.Error(t, err)
}
