package repository

import (
	"context"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// Store defines persistence for emitted notifications. The hub itself is
// fire-and-forget; this store exists so CRUD services can list what a user
// missed while offline. The hub never reads notifications back into broadcasts.
type Store interface {
	Save(ctx context.Context, n *domain.Notification) error
	ListUnread(ctx context.Context, tenantID string, limit int32) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, tenantID string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, tenantID string) (int64, error)
}
