// Package file provides file-based persistence for development and tests.
// Records are JSON documents laid out per organization; counter updates are
// serialized by a per-repository mutex, which stands in for the atomic
// increments the SQL implementation gets from single-statement updates.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string

	*WebhookRepository
	*WorkflowRepository
	*ExecutionRepository
	*SecurityLogRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:                  cleanRoot,
		WebhookRepository:     NewWebhookRepository(cleanRoot),
		WorkflowRepository:    NewWorkflowRepository(cleanRoot),
		ExecutionRepository:   NewExecutionRepository(cleanRoot),
		SecurityLogRepository: NewSecurityLogRepository(cleanRoot),
	}
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o750); err != nil {
		return fmt.Errorf("persistence root not writable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func writeDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return nil
}

func readDocument(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read document: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return true, nil
}
