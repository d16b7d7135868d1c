// Package events defines the messages exchanged between the webhook gateway
// and the execution workers.
package events

import (
	"time"

	"github.com/atlasfit/automation/pkg/models"
)

type EventType string

// Topic carries every pipeline event; consumers filter on the type metadata.
const Topic = "automation.events"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	// WorkflowTriggeredEvent hands an accepted webhook request to a worker.
	WorkflowTriggeredEvent EventType = "workflow.triggered"

	// ExecutionCompletedEvent reports a successful run.
	ExecutionCompletedEvent EventType = "execution.completed"

	// ExecutionFailedEvent reports a failed run.
	ExecutionFailedEvent EventType = "execution.failed"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	OrganizationID string    `json:"organization_id"`
	WorkflowID     string    `json:"workflow_id"`
}

// WorkflowTriggered is published by the gateway once the execution record
// exists; the HTTP response goes out without waiting for a worker.
type WorkflowTriggered struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	WebhookID   string             `json:"webhook_id"`
	TriggerData map[string]any     `json:"trigger_data,omitempty"`
	Trigger     models.TriggerMeta `json:"trigger"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
