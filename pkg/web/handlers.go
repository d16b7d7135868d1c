package web

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/atlasfit/automation/pkg/sanitize"
	"github.com/atlasfit/automation/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	store          persistence.Persistence
	sanitizer      *sanitize.Sanitizer
	graphValidator *workflow.Validator
	validator      *validator.Validate
	logger         *slog.Logger
}

func NewAPIHandlers(store persistence.Persistence, validator *validator.Validate, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		store:          store,
		sanitizer:      sanitize.NewDefault(),
		graphValidator: workflow.NewValidator(),
		validator:      validator,
		logger:         logger.With("module", "api"),
	}
}

// organizationID resolves the tenant for the request. The empty string means
// the header is missing and the caller already got a 400.
func organizationID(c fiber.Ctx) string {
	return c.Get(OrganizationHeader)
}

// checkWorkflow runs the full intake pipeline on a raw workflow object:
// sanitize first, then graph validation on whatever survived. The combined
// result carries every error from both passes.
func (h *APIHandlers) checkWorkflow(raw map[string]any, orgID string) (*models.Workflow, *models.ValidationResult) {
	result := h.sanitizer.ValidateWorkflowData(raw, orgID)

	sanitized, _ := result.Data.(*models.Workflow)
	if sanitized == nil {
		return nil, result
	}

	graph := h.graphValidator.ValidateGraph(sanitized, orgID)

	for _, msg := range graph.Errors {
		result.AddError(msg)
	}

	for _, msg := range graph.Warnings {
		result.AddWarning(msg)
	}

	return sanitized, result
}

// ValidateWorkflow runs the intake pipeline without persisting anything. The
// response always includes the sanitized object so the builder UI can
// redisplay cleaned input.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	var raw map[string]any
	if err := c.Bind().JSON(&raw); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	sanitized, result := h.checkWorkflow(raw, orgID)

	return c.JSON(fiber.Map{
		"is_valid": result.Valid,
		"errors":   result.Errors,
		"warnings": result.Warnings,
		"workflow": sanitized,
	})
}

// CreateWorkflow validates and persists a workflow. Invalid input answers 422
// with the full validation result instead of a bare problem, so the caller
// sees every failure at once.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	var raw map[string]any
	if err := c.Bind().JSON(&raw); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	sanitized, result := h.checkWorkflow(raw, orgID)
	if !result.Valid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"is_valid": false,
			"errors":   result.Errors,
			"warnings": result.Warnings,
			"workflow": sanitized,
		})
	}

	if sanitized.ID == "" {
		sanitized.ID = uuid.New().String()
	}

	if err := h.store.SaveWorkflow(c.Context(), sanitized); err != nil {
		return internalError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Workflow created",
		"organization_id", orgID, "workflow_id", sanitized.ID)

	return c.Status(fiber.StatusCreated).JSON(sanitized)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	workflows, err := h.store.Workflows(c.Context(), orgID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.store.WorkflowByID(c.Context(), orgID, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(found)
}

// ArchiveWorkflow soft-deletes: the workflow stays queryable but stops
// accepting triggers.
func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.store.ArchiveWorkflow(c.Context(), orgID, id); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	executions, err := h.store.ExecutionsByWorkflow(c.Context(), orgID, id, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.store.ExecutionByID(c.Context(), orgID, id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// CreateWebhook registers an inbound trigger endpoint for a workflow. The
// generated secret appears in this response and never again.
func (h *APIHandlers) CreateWebhook(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	var req CreateWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.store.WorkflowByID(c.Context(), orgID, req.WorkflowID); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	secret, err := generateSecret()
	if err != nil {
		return internalError(c, err)
	}

	now := time.Now().UTC()
	webhook := &models.Webhook{
		ID:                    uuid.New().String(),
		OrganizationID:        orgID,
		WorkflowID:            req.WorkflowID,
		Name:                  req.Name,
		Secret:                secret,
		Active:                true,
		TimestampToleranceSec: req.TimestampToleranceSec,
		MaxPayloadBytes:       req.MaxPayloadBytes,
		PayloadSchema:         req.PayloadSchema,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := h.store.SaveWebhook(c.Context(), webhook); err != nil {
		return internalError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Webhook created",
		"organization_id", orgID, "webhook_id", webhook.ID, "workflow_id", req.WorkflowID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"webhook": webhook,
		"secret":  secret,
	})
}

func (h *APIHandlers) GetWebhook(c fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return badRequest(c, OrganizationHeader+" header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Webhook ID is required")
	}

	webhook, err := h.store.WebhookByID(c.Context(), orgID, id)
	if err != nil {
		if persistence.IsWebhookNotFound(err) {
			return notFound(c, "Webhook not found")
		}

		return internalError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(c.Context()); err != nil {
		h.logger.WarnContext(c.Context(), "Health check failed", "error", err)

		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// generateSecret returns a fresh webhook signing secret.
func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}

	return "whsec_" + hex.EncodeToString(buf), nil
}
