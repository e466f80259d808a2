package mocks

import (
	"context"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockAuditRepository is a mock implementation of persistence.AuditRepository interface.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockAuditRepository) ByFlow(ctx context.Context, flowID string) ([]*models.AuditLog, error) {
	args := m.Called(ctx, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockAuditRepository) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
