package repository

import (
	"context"
	"database/sql"

	"peoplepulse/realtime-hub/internal/audit/domain"
)

// PostgresRepository persists audit logs to the presence_audit table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists one audit log entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	meta := sql.NullString{String: entry.Metadata, Valid: entry.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presence_audit (id, tenant_id, user_id, action, resource, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.TenantID, entry.UserID, entry.Action, entry.Resource, meta, entry.CreatedAt,
	)
	return err
}

// ListByTenant returns audit logs for the tenant, newest first, paginated by
// limit and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, action, resource, metadata, created_at
		FROM presence_audit
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		var meta sql.NullString
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Action, &entry.Resource, &meta, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			entry.Metadata = meta.String
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}
