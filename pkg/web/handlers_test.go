package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence/file"
	"github.com/atlasfit/automation/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	handlers := web.NewAPIHandlers(store, validator.New(validator.WithRequiredStructEnabled()), logger)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.ArchiveWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	wh := app.Group("/webhooks")
	wh.Post("/", handlers.CreateWebhook)
	wh.Get("/:id", handlers.GetWebhook)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, orgID string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if orgID != "" {
		req.Header.Set(web.OrganizationHeader, orgID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp, decoded
}

func rawWorkflow() map[string]any {
	triggerID := uuid.New().String()
	actionID := uuid.New().String()

	return map[string]any{
		"name":        "welcome sequence",
		"description": "greets new members",
		"status":      "active",
		"workflow_data": map[string]any{
			"nodes": []any{
				map[string]any{"id": triggerID, "type": "trigger", "name": "signup"},
				map[string]any{
					"id": actionID, "type": "action", "name": "log it",
					"config": map[string]any{"message": "new member"},
				},
			},
			"edges": []any{
				map[string]any{"source": triggerID, "target": actionID},
			},
		},
	}
}

func TestValidateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	orgID := uuid.New().String()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", orgID, rawWorkflow())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_valid"])
	assert.NotNil(t, body["workflow"])
	assert.Empty(t, body["errors"])
}

func TestValidateWorkflow_InvalidGraph(t *testing.T) {
	app, _ := setupTestApp(t)
	orgID := uuid.New().String()

	raw := rawWorkflow()
	data := raw["workflow_data"].(map[string]any)
	data["edges"] = []any{
		map[string]any{"source": uuid.New().String(), "target": uuid.New().String()},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", orgID, raw)

	require.Equal(t, http.StatusOK, resp.StatusCode, "validate always answers 200; the verdict is in the body")
	assert.Equal(t, false, body["is_valid"])
	assert.NotEmpty(t, body["errors"])
	assert.NotNil(t, body["workflow"], "sanitized object comes back even on failure")
}

func TestValidateWorkflow_SanitizesStrings(t *testing.T) {
	app, _ := setupTestApp(t)
	orgID := uuid.New().String()

	raw := rawWorkflow()
	raw["name"] = `<script>alert(1)</script>welcome`

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/validate", orgID, raw)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	workflow, ok := body["workflow"].(map[string]any)
	require.True(t, ok)

	name, _ := workflow["name"].(string)
	assert.NotContains(t, name, "<script>")
}

func TestCreateWorkflow(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", orgID, rawWorkflow())

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflowID, _ := body["id"].(string)
	require.NotEmpty(t, workflowID)

	saved, err := store.WorkflowByID(context.Background(), orgID, workflowID)
	require.NoError(t, err)
	assert.Equal(t, "welcome sequence", saved.Name)
	assert.Equal(t, orgID, saved.OrganizationID)
	assert.Len(t, saved.Nodes, 2)
}

func TestCreateWorkflow_InvalidNotPersisted(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()

	raw := rawWorkflow()
	data := raw["workflow_data"].(map[string]any)
	data["nodes"] = []any{
		map[string]any{"id": "not-a-uuid", "type": "teleport"},
	}

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", orgID, raw)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, body["errors"])

	workflows, err := store.Workflows(context.Background(), orgID)
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestCreateWorkflow_MissingOrganizationHeader(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows", "", rawWorkflow())

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflow_TenantIsolation(t *testing.T) {
	app, _ := setupTestApp(t)
	orgID := uuid.New().String()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", orgID, rawWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflowID, _ := body["id"].(string)

	owned, _ := doJSON(t, app, http.MethodGet, "/workflows/"+workflowID, orgID, nil)
	assert.Equal(t, http.StatusOK, owned.StatusCode)

	foreign, _ := doJSON(t, app, http.MethodGet, "/workflows/"+workflowID, uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, foreign.StatusCode, "another tenant must not see the workflow")
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/"+uuid.New().String(), uuid.New().String(), nil)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Workflow not found", body["detail"])
}

func TestArchiveWorkflow(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", orgID, rawWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflowID, _ := body["id"].(string)

	archived, _ := doJSON(t, app, http.MethodDelete, "/workflows/"+workflowID, orgID, nil)
	assert.Equal(t, http.StatusNoContent, archived.StatusCode)

	saved, err := store.WorkflowByID(context.Background(), orgID, workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, saved.Status)
}

func TestCreateWebhook(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()

	resp, created := doJSON(t, app, http.MethodPost, "/workflows", orgID, rawWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	workflowID, _ := created["id"].(string)

	resp, body := doJSON(t, app, http.MethodPost, "/webhooks", orgID, web.CreateWebhookRequest{
		WorkflowID: workflowID,
		Name:       "member signup",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	secret, _ := body["secret"].(string)
	assert.True(t, strings.HasPrefix(secret, "whsec_"), "secret: %q", secret)

	webhook, ok := body["webhook"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, webhook, "secret", "secret only appears at the top level, once")

	webhookID, _ := webhook["id"].(string)
	saved, err := store.WebhookByID(context.Background(), orgID, webhookID)
	require.NoError(t, err)
	assert.Equal(t, secret, saved.Secret)
	assert.True(t, saved.Active)
}

func TestCreateWebhook_UnknownWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/webhooks", uuid.New().String(), web.CreateWebhookRequest{
		WorkflowID: uuid.New().String(),
		Name:       "member signup",
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWebhook_ValidationError(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/webhooks", uuid.New().String(), web.CreateWebhookRequest{
		WorkflowID: "not-a-uuid",
		Name:       "x",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecution(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()

	execution := &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     uuid.New().String(),
		OrganizationID: orgID,
		Status:         models.ExecutionStatusRunning,
		Input:          map[string]any{"member_id": "m-1"},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.CreateExecution(context.Background(), execution))

	resp, body := doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, orgID, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, execution.ID, body["id"])

	missing, _ := doJSON(t, app, http.MethodGet, "/executions/"+uuid.New().String(), orgID, nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetWorkflowExecutions(t *testing.T) {
	app, store := setupTestApp(t)
	orgID := uuid.New().String()
	workflowID := uuid.New().String()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateExecution(context.Background(), &models.Execution{
			ID:             uuid.New().String(),
			WorkflowID:     workflowID,
			OrganizationID: orgID,
			Status:         models.ExecutionStatusRunning,
			CreatedAt:      time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/"+workflowID+"/executions?limit=2", orgID, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_count"])

	bad, _ := doJSON(t, app, http.MethodGet, "/workflows/"+workflowID+"/executions?limit=nope", orgID, nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
