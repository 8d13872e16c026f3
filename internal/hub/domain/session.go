package domain

import "time"

// Session binds one live transport connection to a user identity and tenant.
// The connection ID is assigned by the transport layer; identity fields are
// set once on the first join-room message and stay fixed for the session's
// lifetime. Only CurrentPage is mutated afterwards.
type Session struct {
	ConnectionID string
	UserID       string
	DisplayName  string
	TenantID     string
	CurrentPage  string
	JoinedAt     time.Time
}

// Bound reports whether the session has been bound to a tenant via join-room.
func (s *Session) Bound() bool {
	return s != nil && s.TenantID != ""
}

// Presence returns the room-visible view of the session.
func (s *Session) Presence(now time.Time) UserPresence {
	return UserPresence{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Page:        s.CurrentPage,
		LastSeen:    now.UTC().Format(time.RFC3339),
	}
}

// UserPresence is what other room members see about a session.
type UserPresence struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"user_name"`
	Page        string `json:"page"`
	LastSeen    string `json:"last_seen"`
}
