package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow run. Transitions are
// running -> completed or running -> failed, never backward.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// StepStatus is the outcome of a single node within an execution.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// ExecutionStep is one entry of an execution's ordered step trace.
type ExecutionStep struct {
	NodeID     string         `json:"node_id"`
	NodeType   NodeType       `json:"node_type"`
	NodeName   string         `json:"node_name,omitempty"`
	Status     StepStatus     `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Retries    int            `json:"retries,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
}

// TriggerMeta records where a trigger request came from, for audit purposes.
type TriggerMeta struct {
	SourceIP   string    `json:"source_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Execution is one run of a workflow triggered by one event.
type Execution struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	WebhookID      string           `json:"webhook_id,omitempty"`
	OrganizationID string           `json:"organization_id"`
	Status         ExecutionStatus  `json:"status"`
	Input          map[string]any   `json:"input,omitempty"`
	Output         map[string]any   `json:"output,omitempty"`
	Error          string           `json:"error,omitempty"`
	Steps          []*ExecutionStep `json:"steps,omitempty"`
	ProcessingMs   int64            `json:"processing_time_ms"`
	Trigger        TriggerMeta      `json:"trigger"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// Terminal reports whether the execution has reached a final status.
func (e *Execution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}
