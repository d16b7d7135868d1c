package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/google/uuid"
)

// SecurityLogRepository appends to the security_violations table. Rows are
// never updated or deleted.
type SecurityLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSecurityLogRepository(db *sql.DB, logger *slog.Logger) *SecurityLogRepository {
	return &SecurityLogRepository{db: db, logger: logger}
}

func (r *SecurityLogRepository) AppendSecurityViolation(ctx context.Context, violation *models.SecurityViolation) error {
	if violation.ID == "" {
		violation.ID = uuid.New().String()
	}

	if violation.CreatedAt.IsZero() {
		violation.CreatedAt = time.Now().UTC()
	}

	detailsJSON, err := json.Marshal(violation.Details)
	if err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, fmt.Errorf("failed to marshal details: %w", err))
	}

	query := `
		INSERT INTO security_violations (
			id, organization_id, webhook_id, violation_type, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		violation.ID,
		violation.OrganizationID,
		violation.WebhookID,
		violation.ViolationType,
		detailsJSON,
		violation.CreatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("AppendSecurityViolation", violation.ID, err)
	}

	return nil
}
