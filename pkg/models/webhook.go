package models

import "time"

// Defaults applied when a webhook leaves the corresponding field unset.
const (
	DefaultTimestampToleranceSec = 300
	DefaultMaxPayloadBytes       = 1024 * 1024 // 1 MiB
)

// Webhook is an inbound trigger endpoint bound to one workflow. The secret is
// shared with the sender and never appears in responses or logs.
type Webhook struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id" validate:"required,uuid4"`
	WorkflowID     string `json:"workflow_id"     validate:"required"`
	Name           string `json:"name"`
	Secret         string `json:"-"`
	Active         bool   `json:"active"`

	// TimestampToleranceSec bounds the age of the x-webhook-timestamp header.
	// Zero means DefaultTimestampToleranceSec.
	TimestampToleranceSec int `json:"timestamp_tolerance_sec,omitempty"`

	// MaxPayloadBytes caps the raw request body. Zero means DefaultMaxPayloadBytes.
	MaxPayloadBytes int64 `json:"max_payload_bytes,omitempty"`

	// PayloadSchema is an optional JSON schema the sanitized payload must satisfy.
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`

	TotalRequests        int64      `json:"total_requests"`
	SuccessfulExecutions int64      `json:"successful_executions"`
	FailedExecutions     int64      `json:"failed_executions"`
	AvgProcessingMs      float64    `json:"avg_processing_time_ms"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimestampTolerance returns the effective replay window.
func (w *Webhook) TimestampTolerance() time.Duration {
	if w.TimestampToleranceSec <= 0 {
		return DefaultTimestampToleranceSec * time.Second
	}

	return time.Duration(w.TimestampToleranceSec) * time.Second
}

// PayloadLimit returns the effective max body size in bytes.
func (w *Webhook) PayloadLimit() int64 {
	if w.MaxPayloadBytes <= 0 {
		return DefaultMaxPayloadBytes
	}

	return w.MaxPayloadBytes
}

// HasPayloadSchema reports whether a JSON schema is configured for the payload.
func (w *Webhook) HasPayloadSchema() bool {
	return len(w.PayloadSchema) > 0
}
