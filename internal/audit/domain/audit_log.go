package domain

import "time"

// AuditLog is one recorded presence or lock event (room.join, room.leave,
// action.lock, action.unlock), kept for operational forensics.
type AuditLog struct {
	ID        string
	TenantID  string
	UserID    string
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}
