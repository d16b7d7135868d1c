package models

import "time"

// ViolationType classifies a security-violation log entry.
type ViolationType string

const (
	ViolationValidationFailed ViolationType = "validation_failed"
	ViolationProcessingError  ViolationType = "processing_error"
)

// SecurityViolation is an append-only audit record written whenever the gate
// rejects a request or hits an unexpected error. Details never include the
// webhook secret.
type SecurityViolation struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	WebhookID      string         `json:"webhook_id"`
	ViolationType  ViolationType  `json:"violation_type"`
	Details        map[string]any `json:"details,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
