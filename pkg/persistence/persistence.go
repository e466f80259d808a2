// Package persistence provides the storage abstraction for sessions, flow
// snapshots and the flow audit log.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/lexflow/pkg/models"
)

type Persistence interface {
	SessionRepository() SessionRepository
	FlowRepository() FlowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// SessionRepository stores the application state of browser sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *models.Session) error
	ByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	// IdleIDs lists sessions not updated since before. Stores that expire
	// entries on their own return nothing.
	IdleIDs(ctx context.Context, before time.Time) ([]string, error)
}

// FlowRepository stores flow state snapshots.
type FlowRepository interface {
	Save(ctx context.Context, state *models.StepState) error
	ByID(ctx context.Context, id string) (*models.StepState, error)
	Delete(ctx context.Context, id string) error
	IdleIDs(ctx context.Context, before time.Time) ([]string, error)
}

// AuditRepository records flow lifecycle transitions.
type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditLog) error
	ByFlow(ctx context.Context, flowID string) ([]*models.AuditLog, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
