package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence/postgresql"
	"github.com/dukex/lexflow/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"audit_logs", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.AuditRepository, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("lexflow_test"),
			postgres.WithUsername("lexflow"),
			postgres.WithPassword("lexflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	repo, err := postgresql.NewAuditRepository(ctx, testLogger(), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)
		require.NoError(t, repo.Close(ctx))
	})

	return repo, ctx, databaseURL
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAuditRepository_RecordAndList(t *testing.T) {
	repo, ctx, _ := setupTestDB(t)

	require.NoError(t, repo.HealthCheck(ctx))

	flowID := uuid.NewString()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	opened := &models.AuditLog{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		SessionID: "session-1",
		FlowKind:  models.FlowKindSignup,
		Action:    models.AuditFlowOpened,
		CreatedAt: base,
	}
	submitted := &models.AuditLog{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		FlowKind:  models.FlowKindSignup,
		Action:    models.AuditFlowSubmitted,
		Detail:    map[string]any{"endpoint": "/api/auth"},
		CreatedAt: base.Add(time.Second),
	}

	require.NoError(t, repo.Record(ctx, submitted))
	require.NoError(t, repo.Record(ctx, opened))
	require.NoError(t, repo.Record(ctx, opened))

	entries, err := repo.ByFlow(ctx, flowID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, models.AuditFlowOpened, entries[0].Action)
	assert.Equal(t, "session-1", entries[0].SessionID)
	assert.Nil(t, entries[0].Detail)
	assert.Equal(t, models.AuditFlowSubmitted, entries[1].Action)
	assert.Empty(t, entries[1].SessionID)
	assert.Equal(t, "/api/auth", entries[1].Detail["endpoint"])
}

func TestAuditRepository_UnknownFlow(t *testing.T) {
	repo, ctx, _ := setupTestDB(t)

	entries, err := repo.ByFlow(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMigrations_AreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	manager := sqlbase.NewMigrationManager(testLogger(), db, map[int]string{
		1: "CREATE TABLE IF NOT EXISTS audit_logs (id UUID PRIMARY KEY)",
		2: "CREATE INDEX IF NOT EXISTS idx_audit_logs_session_id ON audit_logs(session_id)",
	})

	require.NoError(t, manager.RunMigrations(ctx))

	version, err := manager.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}
