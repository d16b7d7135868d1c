// Package web provides the REST API for managing workflows, webhooks and
// execution history. Every request is tenant-scoped by the X-Organization-ID
// header; the gateway package serves the inbound trigger path separately.
package web

// OrganizationHeader carries the caller's tenant. Authentication happens
// upstream; by the time a request reaches this API the header is trusted.
const OrganizationHeader = "X-Organization-ID"

// ValidateWorkflowRequest wraps the raw workflow object coming from the
// builder UI. It is deliberately loose: sanitization and validation decide
// what survives.
type ValidateWorkflowRequest struct {
	Workflow map[string]any `json:"workflow" validate:"required"`
}

// CreateWebhookRequest represents the request body for registering an inbound
// trigger endpoint against an existing workflow.
type CreateWebhookRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required,uuid4"`
	Name       string `json:"name"        validate:"required,min=3"`

	TimestampToleranceSec int   `json:"timestamp_tolerance_sec,omitempty" validate:"omitempty,min=0,max=3600"`
	MaxPayloadBytes       int64 `json:"max_payload_bytes,omitempty"       validate:"omitempty,min=0"`

	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
}
