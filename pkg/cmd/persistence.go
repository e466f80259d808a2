package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/persistence/file"
	"github.com/dukex/lexflow/pkg/persistence/postgresql"
	"github.com/dukex/lexflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "redis", "rediss"}

// NewPersistence opens the session and flow store named by storeURL:
// file://<dir> or redis://... Redis entries expire after idle.
func NewPersistence(ctx context.Context, logger *slog.Logger, storeURL string, idle time.Duration) (persistence.Persistence, error) {
	switch parsePersistenceProvider(storeURL) {
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, storeURL, idle)
	default:
		root := strings.TrimPrefix(storeURL, "file://")
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}

		return file.NewPersistence(root), nil
	}
}

// NewAuditRepository opens the postgres audit log. An empty url disables auditing.
func NewAuditRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.AuditRepository, error) {
	if databaseURL == "" {
		return nil, nil //nolint:nilnil // auditing is optional
	}

	return postgresql.NewAuditRepository(ctx, logger, databaseURL)
}

func parsePersistenceProvider(storeURL string) string {
	parts := strings.Split(storeURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
