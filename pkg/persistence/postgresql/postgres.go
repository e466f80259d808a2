// Package postgresql provides the PostgreSQL audit log for flow transitions.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// AuditRepository implements persistence.AuditRepository for PostgreSQL.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository connects to databaseURL and migrates the audit schema.
func NewAuditRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*AuditRepository, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &AuditRepository{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (r *AuditRepository) Close(_ context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *AuditRepository) HealthCheck(ctx context.Context) error {
	err := r.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Record inserts one audit entry. Re-recording an id is ignored.
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, flow_id, session_id, flow_kind, action, detail, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.FlowID,
		entry.SessionID,
		entry.FlowKind,
		entry.Action,
		detailJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}

	return nil
}

// ByFlow returns a flow's audit trail, oldest first.
func (r *AuditRepository) ByFlow(ctx context.Context, flowID string) ([]*models.AuditLog, error) {
	query := `
		SELECT id, flow_id, COALESCE(session_id, ''), flow_kind, action, detail, created_at
		FROM audit_logs
		WHERE flow_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var entries []*models.AuditLog

	for rows.Next() {
		var (
			entry      models.AuditLog
			detailJSON []byte
		)

		err := rows.Scan(&entry.ID, &entry.FlowID, &entry.SessionID, &entry.FlowKind, &entry.Action, &detailJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &entry.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit detail: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, nil
}
