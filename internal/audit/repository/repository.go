package repository

import (
	"context"

	"peoplepulse/realtime-hub/internal/audit/domain"
)

// Repository defines persistence for presence audit logs.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
}
