package hub

import (
	"errors"
	"time"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

var (
	// ErrNotBound is returned when an operation requires a joined session
	// but the connection never sent join-room (or is unknown).
	ErrNotBound = errors.New("connection is not bound to a tenant")
	// ErrAlreadyBound is returned on a second join-room for the same
	// connection. A connection joins exactly one tenant for its lifetime;
	// re-binding requires a new connection.
	ErrAlreadyBound = errors.New("connection is already bound to a tenant")
)

// Registry maps active transport connections to session metadata and owns the
// session lifecycle. It is not safe for concurrent use on its own: the Hub
// serializes all mutations behind a single mutex so that no caller can observe
// a partially-updated registry/room/lock state.
type Registry struct {
	sessions map[string]*domain.Session
	nowF     func() time.Time
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
		nowF:     time.Now,
	}
}

// Register creates a session for a freshly connected transport connection.
// The session carries no tenant or user identity until Bind.
func (r *Registry) Register(connectionID string) *domain.Session {
	s := &domain.Session{ConnectionID: connectionID}
	r.sessions[connectionID] = s
	return s
}

// Bind attaches tenant and user identity to the session. It fails with
// ErrAlreadyBound when called twice for the same connection and with
// ErrNotBound when the connection was never registered.
func (r *Registry) Bind(connectionID, tenantID, userID, displayName string) (*domain.Session, error) {
	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, ErrNotBound
	}
	if s.Bound() {
		return nil, ErrAlreadyBound
	}
	s.TenantID = tenantID
	s.UserID = userID
	s.DisplayName = displayName
	s.CurrentPage = "dashboard"
	s.JoinedAt = r.nowF().UTC()
	return s, nil
}

// UpdatePage records the session's last reported navigation location.
func (r *Registry) UpdatePage(connectionID, page string) (*domain.Session, error) {
	s, ok := r.sessions[connectionID]
	if !ok || !s.Bound() {
		return nil, ErrNotBound
	}
	s.CurrentPage = page
	return s, nil
}

// Get returns the session for connectionID, or nil and false when unknown.
func (r *Registry) Get(connectionID string) (*domain.Session, bool) {
	s, ok := r.sessions[connectionID]
	return s, ok
}

// Unregister removes and returns the session for connectionID. The caller
// (the Hub) is responsible for the cascading room and lock cleanup.
func (r *Registry) Unregister(connectionID string) (*domain.Session, bool) {
	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connectionID)
	return s, true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.sessions)
}
