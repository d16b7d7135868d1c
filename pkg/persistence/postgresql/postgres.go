// Package postgresql provides PostgreSQL persistence for webhooks, workflows,
// executions and the security-violation log.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/atlasfit/automation/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL. Counter
// updates are single-statement SQL so concurrent triggers never lose
// increments.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	*WebhookRepository
	*WorkflowRepository
	*ExecutionRepository
	*SecurityLogRepository
}

// NewPersistence opens a connection pool and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:                    database,
		logger:                logger,
		WebhookRepository:     NewWebhookRepository(database, logger),
		WorkflowRepository:    NewWorkflowRepository(database, logger),
		ExecutionRepository:   NewExecutionRepository(database, logger),
		SecurityLogRepository: NewSecurityLogRepository(database, logger),
	}, nil
}

// Close closes the database connection pool.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
