package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atlasfit/automation/pkg/eventbus"
	"github.com/atlasfit/automation/pkg/events"
	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/otelhelper"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/atlasfit/automation/pkg/ratelimit"
	"github.com/atlasfit/automation/pkg/sanitize"
	"github.com/atlasfit/automation/pkg/signature"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Limits are deployment-wide fallbacks applied when a webhook leaves the
// corresponding field unset. A webhook's own settings always win; zero
// fields here keep the model defaults.
type Limits struct {
	MaxPayloadBytes    int64
	TimestampTolerance time.Duration
}

// Gate is the security gate every inbound webhook request passes through:
// rate limit, size check, signature verification, webhook/workflow
// resolution. Accepted requests get an execution record and a published
// trigger event; the response never waits for the workflow to finish.
type Gate struct {
	store     persistence.Persistence
	limiter   ratelimit.Limiter
	sanitizer *sanitize.Sanitizer
	publisher eventbus.EventBus
	limits    Limits
	logger    *slog.Logger
	tracer    trace.Tracer

	now func() time.Time
}

func NewGate(store persistence.Persistence, limiter ratelimit.Limiter, publisher eventbus.EventBus, limits Limits, logger *slog.Logger) *Gate {
	return &Gate{
		store:     store,
		limiter:   limiter,
		sanitizer: sanitize.NewDefault(),
		publisher: publisher,
		limits:    limits,
		logger:    logger.With("module", "webhook_gate"),
		tracer:    otel.Tracer("webhook-gateway"),
		now:       time.Now,
	}
}

// payloadLimit resolves webhook setting -> deployment fallback -> default.
func (g *Gate) payloadLimit(webhook *models.Webhook) int64 {
	if webhook.MaxPayloadBytes <= 0 && g.limits.MaxPayloadBytes > 0 {
		return g.limits.MaxPayloadBytes
	}

	return webhook.PayloadLimit()
}

// timestampTolerance resolves webhook setting -> deployment fallback -> default.
func (g *Gate) timestampTolerance(webhook *models.Webhook) time.Duration {
	if webhook.TimestampToleranceSec <= 0 && g.limits.TimestampTolerance > 0 {
		return g.limits.TimestampTolerance
	}

	return webhook.TimestampTolerance()
}

// HandleTrigger serves POST /webhook/{organizationID}/{webhookID}.
func (g *Gate) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	started := g.now()

	if r.Method != http.MethodPost {
		writeJSON(g.logger, w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"error":   "Only POST method allowed",
		})

		return
	}

	organizationID := r.PathValue("organizationID")
	webhookID := r.PathValue("webhookID")

	if organizationID == "" || webhookID == "" {
		writeJSON(g.logger, w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Missing organization or webhook id in path",
		})

		return
	}

	logger := g.logger.With("organization_id", organizationID, "webhook_id", webhookID)

	ctx, span := otelhelper.StartSpan(r.Context(), g.tracer, "gateway.trigger",
		otelhelper.OrganizationAttr(organizationID),
		otelhelper.WebhookAttr(webhookID),
	)
	defer span.End()

	r = r.WithContext(ctx)

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			otelhelper.SetError(span, err)
			g.processingError(logger, w, r, organizationID, webhookID, started, err)
		}
	}()

	decision, err := g.limiter.Allow(ctx, organizationID, webhookID)
	if err != nil {
		otelhelper.SetError(span, err)
		g.processingError(logger, w, r, organizationID, webhookID, started, err)

		return
	}

	if !decision.Allowed {
		logger.WarnContext(ctx, "Rate limit exceeded", "limit", decision.Limit)
		writeRateLimited(g.logger, w, decision)

		return
	}

	webhook, err := g.store.WebhookByID(ctx, organizationID, webhookID)
	if err != nil {
		if persistence.IsWebhookNotFound(err) {
			writeNotFound(g.logger, w)

			return
		}

		otelhelper.SetError(span, err)
		g.processingError(logger, w, r, organizationID, webhookID, started, err)

		return
	}

	if !webhook.Active {
		logger.WarnContext(ctx, "Request for inactive webhook")
		writeNotFound(g.logger, w)

		return
	}

	limit := g.payloadLimit(webhook)
	if r.ContentLength > limit {
		writeJSON(g.logger, w, http.StatusRequestEntityTooLarge, map[string]any{
			"success": false,
			"error":   "Payload too large",
		})

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSON(g.logger, w, http.StatusRequestEntityTooLarge, map[string]any{
				"success": false,
				"error":   "Payload too large",
			})

			return
		}

		g.reject(logger, w, r, webhook, body, []string{"failed to read request body"}, false)

		return
	}

	sig := signature.FromHeaders(r.Header)
	signatureValid := signature.Verify(webhook.Secret, body, sig)
	timestampValid := signature.VerifyTimestamp(r.Header.Get(signature.TimestampHeader), g.timestampTolerance(webhook), g.now())

	if !signatureValid || !timestampValid {
		details := make([]string, 0, 2)

		if !signatureValid {
			details = append(details, "invalid or missing signature")
		}

		if !timestampValid {
			details = append(details, "timestamp outside tolerance window")
		}

		g.reject(logger, w, r, webhook, body, details, signatureValid)

		return
	}

	var payload any

	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			g.reject(logger, w, r, webhook, body, []string{"invalid JSON in request body"}, true)

			return
		}
	} else {
		payload = map[string]any{}
	}

	result := g.sanitizer.ValidateTriggerData(payload, organizationID)
	if !result.Valid {
		g.reject(logger, w, r, webhook, body, result.Errors, true)

		return
	}

	triggerData, _ := result.Data.(map[string]any)
	if triggerData == nil {
		triggerData = map[string]any{"payload": result.Data}
	}

	if webhook.HasPayloadSchema() {
		schemaErrors, err := validateSchema(webhook.PayloadSchema, triggerData)
		if err != nil {
			otelhelper.SetError(span, err)
			g.processingError(logger, w, r, organizationID, webhookID, started, err)

			return
		}

		if len(schemaErrors) > 0 {
			g.reject(logger, w, r, webhook, body, schemaErrors, true)

			return
		}
	}

	workflow, err := g.store.WorkflowByID(ctx, organizationID, webhook.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			writeNotFound(g.logger, w)

			return
		}

		otelhelper.SetError(span, err)
		g.processingError(logger, w, r, organizationID, webhookID, started, err)

		return
	}

	if workflow.Status != models.WorkflowStatusActive {
		logger.WarnContext(ctx, "Webhook points at a non-active workflow", "workflow_status", workflow.Status)
		writeNotFound(g.logger, w)

		return
	}

	execution := &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		WebhookID:      webhook.ID,
		OrganizationID: organizationID,
		Status:         models.ExecutionStatusRunning,
		Input:          triggerData,
		Trigger: models.TriggerMeta{
			SourceIP:   sourceIP(r),
			UserAgent:  r.UserAgent(),
			ReceivedAt: g.now().UTC(),
		},
		CreatedAt: g.now().UTC(),
	}

	if err := g.store.CreateExecution(ctx, execution); err != nil {
		otelhelper.SetError(span, err)
		g.processingError(logger, w, r, organizationID, webhookID, started, err)

		return
	}

	if err := g.store.RecordWebhookRequest(ctx, organizationID, webhookID); err != nil {
		logger.ErrorContext(ctx, "Failed to record webhook request", "error", err)
	}

	event := events.WorkflowTriggered{
		BaseEvent: events.BaseEvent{
			ID:             g.publisher.GenerateID(),
			Type:           events.WorkflowTriggeredEvent,
			Timestamp:      g.now().UTC(),
			OrganizationID: organizationID,
			WorkflowID:     workflow.ID,
		},
		ExecutionID: execution.ID,
		WebhookID:   webhook.ID,
		TriggerData: triggerData,
		Trigger:     execution.Trigger,
	}

	if err := g.publisher.Publish(ctx, workflow.ID, event); err != nil {
		g.abortExecution(ctx, logger, execution, err)
		otelhelper.SetError(span, err)
		g.processingError(logger, w, r, organizationID, webhookID, started, err)

		return
	}

	elapsed := g.now().Sub(started).Milliseconds()

	logger.InfoContext(ctx, "Webhook accepted",
		"execution_id", execution.ID,
		"workflow_id", workflow.ID,
		"processing_time_ms", elapsed,
	)

	w.Header().Set("X-Execution-ID", execution.ID)
	w.Header().Set("X-Processing-Time", strconv.FormatInt(elapsed, 10))
	writeJSON(g.logger, w, http.StatusOK, map[string]any{
		"success":            true,
		"execution_id":       execution.ID,
		"message":            "Webhook received, workflow execution started",
		"processing_time_ms": elapsed,
	})
}

// abortExecution fails an execution whose trigger event never reached the
// bus. Without the terminal update the record would sit in running forever:
// no worker will ever hear about it.
func (g *Gate) abortExecution(ctx context.Context, logger *slog.Logger, execution *models.Execution, cause error) {
	now := g.now().UTC()

	failed := *execution
	failed.Status = models.ExecutionStatusFailed
	failed.Error = fmt.Sprintf("failed to publish trigger event: %v", cause)
	failed.CompletedAt = &now
	failed.ProcessingMs = now.Sub(execution.CreatedAt).Milliseconds()

	if err := g.store.CompleteExecution(ctx, &failed); err != nil {
		logger.ErrorContext(ctx, "Failed to fail execution after publish error", "execution_id", execution.ID, "error", err)
	}
}

// reject logs a validation failure to the security log and answers 400. The
// response itemizes the failures but never includes the secret or internals.
func (g *Gate) reject(logger *slog.Logger, w http.ResponseWriter, r *http.Request, webhook *models.Webhook, body []byte, details []string, signatureValid bool) {
	logger.WarnContext(r.Context(), "Webhook request rejected", "details", details)

	violation := &models.SecurityViolation{
		OrganizationID: webhook.OrganizationID,
		WebhookID:      webhook.ID,
		ViolationType:  models.ViolationValidationFailed,
		Details: map[string]any{
			"errors":          details,
			"signature_valid": signatureValid,
			"payload_size":    len(body),
			"source_ip":       sourceIP(r),
		},
	}

	if err := g.store.AppendSecurityViolation(r.Context(), violation); err != nil {
		logger.ErrorContext(r.Context(), "Failed to append security violation", "error", err)
	}

	writeJSON(g.logger, w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   "Webhook validation failed",
		"details": details,
	})
}

// processingError logs an unexpected failure as a processing_error violation
// and answers 500 without leaking internals.
func (g *Gate) processingError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, organizationID, webhookID string, started time.Time, err error) {
	logger.ErrorContext(r.Context(), "Unexpected error processing webhook", "error", err)

	violation := &models.SecurityViolation{
		OrganizationID: organizationID,
		WebhookID:      webhookID,
		ViolationType:  models.ViolationProcessingError,
		Details: map[string]any{
			"error":     err.Error(),
			"source_ip": sourceIP(r),
		},
	}

	if logErr := g.store.AppendSecurityViolation(r.Context(), violation); logErr != nil {
		logger.ErrorContext(r.Context(), "Failed to append security violation", "error", logErr)
	}

	writeJSON(g.logger, w, http.StatusInternalServerError, map[string]any{
		"success":           false,
		"error":             "Internal server error",
		"execution_time_ms": g.now().Sub(started).Milliseconds(),
	})
}

func validateSchema(schema, data map[string]any) ([]string, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed to run: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	schemaErrors := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		schemaErrors = append(schemaErrors, desc.String())
	}

	return schemaErrors, nil
}

// sourceIP resolves the client address for audit logging, trusting the usual
// proxy headers first.
func sourceIP(r *http.Request) string {
	if forwarded := r.Header.Get("x-forwarded-for"); forwarded != "" {
		parts := strings.Split(forwarded, ",")

		return strings.TrimSpace(parts[0])
	}

	if realIP := r.Header.Get("x-real-ip"); realIP != "" {
		return realIP
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}

	return host
}

func writeNotFound(logger *slog.Logger, w http.ResponseWriter) {
	writeJSON(logger, w, http.StatusNotFound, map[string]any{
		"success": false,
		"error":   "Webhook not found",
	})
}

func writeRateLimited(logger *slog.Logger, w http.ResponseWriter, decision ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

	writeJSON(logger, w, http.StatusTooManyRequests, map[string]any{
		"success":   false,
		"error":     "Rate limit exceeded",
		"resetTime": decision.ResetAt.UnixMilli(),
		"remaining": decision.Remaining,
	})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, statusCode int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}
