package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/google/uuid"
)

// SecurityLogRepository appends violations to a per-organization JSON lines
// file. The log is append-only; nothing ever rewrites it.
type SecurityLogRepository struct {
	root string
	mu   sync.Mutex
}

func NewSecurityLogRepository(root string) *SecurityLogRepository {
	return &SecurityLogRepository{root: root}
}

func (r *SecurityLogRepository) path(organizationID string) string {
	return filepath.Join(r.root, "organizations", organizationID, "security_violations.jsonl")
}

func (r *SecurityLogRepository) AppendSecurityViolation(_ context.Context, violation *models.SecurityViolation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if violation.ID == "" {
		violation.ID = uuid.New().String()
	}

	if violation.CreatedAt.IsZero() {
		violation.CreatedAt = time.Now().UTC()
	}

	path := r.path(violation.OrganizationID)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, err)
	}

	line, err := json.Marshal(violation)
	if err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, err)
	}

	defer func() {
		_ = f.Close()
	}()

	if _, err := fmt.Fprintf(f, "%s\n", line); err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, err)
	}

	return nil
}
