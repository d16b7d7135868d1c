// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWebhookNotFound indicates a webhook was not found for the tenant.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrWorkflowNotFound indicates a workflow was not found for the tenant.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found for the tenant.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionAlreadyTerminal indicates a second terminal update was
	// attempted on an execution that already completed or failed.
	ErrExecutionAlreadyTerminal = errors.New("execution already in a terminal state")

	// ErrWorkflowAlreadyExists indicates an insert collided with an existing id.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op       string // Operation being performed (e.g. "WebhookByID", "CompleteExecution")
	EntityID string // Record id if applicable
	Err      error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a storage error with operation context.
func NewStoreError(op, entityID string, err error) *StoreError {
	return &StoreError{Op: op, EntityID: entityID, Err: err}
}

// IsWebhookNotFound checks if an error indicates a missing webhook.
func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsExecutionAlreadyTerminal checks if an error indicates a duplicate terminal update.
func IsExecutionAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrExecutionAlreadyTerminal)
}
