package repository

import (
	"context"
	"database/sql"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// PostgresStore persists notifications to the notifications table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a notification store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save persists the notification exactly as it was emitted. The notification
// must have ID and CreatedAt stamped by the hub.
func (s *PostgresStore) Save(ctx context.Context, n *domain.Notification) error {
	actionURL := sql.NullString{String: n.ActionURL, Valid: n.ActionURL != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, type, category, title, message, action_url, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.TenantID, n.Type, n.Category, n.Title, n.Message, actionURL, n.Read, n.CreatedAt,
	)
	return err
}

// ListUnread returns unread notifications for the tenant, newest first.
func (s *PostgresStore) ListUnread(ctx context.Context, tenantID string, limit int32) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, type, category, title, message, action_url, read, created_at
		FROM notifications
		WHERE tenant_id = $1 AND read = FALSE
		ORDER BY created_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var actionURL sql.NullString
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Type, &n.Category, &n.Title, &n.Message, &actionURL, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if actionURL.Valid {
			n.ActionURL = actionURL.String
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications for the tenant.
func (s *PostgresStore) CountUnread(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND read = FALSE`,
		tenantID,
	).Scan(&count)
	return count, err
}

// MarkRead marks one notification as read. Unknown IDs are a no-op.
func (s *PostgresStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

// MarkAllRead marks every unread notification for the tenant as read and
// returns how many rows changed.
func (s *PostgresStore) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = NOW() WHERE tenant_id = $1 AND read = FALSE`,
		tenantID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
