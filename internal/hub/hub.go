// Package hub implements the realtime presence and collaboration core: the
// connection registry, tenant room membership, broadcast fan-out, the advisory
// action-lock table, and the dashboard/notification channel. All state lives
// behind one Hub handle; there are no package-level registries.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// auditTimeout bounds a single async audit write so a slow store never backs
// up into the hub.
const auditTimeout = 5 * time.Second

// ErrTenantMismatch is returned when a message names a tenant other than the
// one the session is bound to.
var ErrTenantMismatch = errors.New("tenant does not match the session binding")

// AuditLogger records presence and lock events for operational audit.
// Implementations must be best-effort: failures are logged, never surfaced.
type AuditLogger interface {
	LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string)
}

// Options configures a Hub.
type Options struct {
	// Logger for hub lifecycle events. A no-op logger is used when nil.
	Logger *zap.Logger
	// LockTTL, when positive, expires action locks older than it on the next
	// acquire attempt. Zero disables expiry: a lock lives until explicit
	// release or holder disconnect.
	LockTTL time.Duration
	// Audit receives join/leave/lock/unlock events. May be nil.
	Audit AuditLogger
	// Metrics receives gauge and counter updates. May be nil.
	Metrics *Metrics
}

// Hub is the single serialization point for all registry, room, and lock
// mutations. Every operation takes the hub mutex, so no caller can observe a
// partially-updated state across the three structures, and broadcasts from one
// origin are emitted in order.
type Hub struct {
	mu       sync.Mutex
	registry *Registry
	rooms    *RoomIndex
	locks    *LockTable
	router   *Router

	log     *zap.Logger
	audit   AuditLogger
	metrics *Metrics
	nowF    func() time.Time
}

// New returns a Hub with empty registry, room index, and lock table.
func New(opts Options) *Hub {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rooms := NewRoomIndex()
	return &Hub{
		registry: NewRegistry(),
		rooms:    rooms,
		locks:    NewLockTable(opts.LockTTL),
		router:   NewRouter(rooms),
		log:      log,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		nowF:     time.Now,
	}
}

// JoinResult is the acknowledgment for a join-room message.
type JoinResult struct {
	ConnectionID  string                `json:"your_connection_id"`
	MembersOnline []domain.UserPresence `json:"users_online"`
}

// Stats is the hub-wide introspection snapshot for operational tooling.
type Stats struct {
	TotalConnections    int            `json:"total_connections"`
	ActiveTenants       int            `json:"active_tenants"`
	ConnectionsByTenant map[string]int `json:"connections_by_tenant"`
}

// Connect registers a new transport connection and its sender. The session
// carries no identity until the client sends join-room.
func (h *Hub) Connect(connectionID string, sender Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registry.Register(connectionID)
	h.router.Attach(connectionID, sender)
	h.metrics.setConnections(h.registry.Len())
	h.log.Debug("connection registered", zap.String("connection_id", connectionID))
}

// Disconnect tears down the connection: every lock held by the session's user
// is released (with an action:unlocked broadcast), the session leaves its room
// (with a user:left broadcast to the remaining members), and the registry
// entry is removed. Safe to call for unknown connections.
func (h *Hub) Disconnect(ctx context.Context, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Unregister(connectionID)
	h.router.Detach(connectionID)
	h.metrics.setConnections(h.registry.Len())
	if !ok {
		return
	}
	if s.Bound() {
		for _, lock := range h.locks.ReleaseAllFor(s.UserID) {
			h.broadcastToRoom(s.TenantID, domain.EventActionUnlocked, domain.ActionUnlocked{RecordID: lock.RecordID})
			h.auditAsync(s, "action.unlock", lock.RecordID, "released on disconnect")
		}
		h.metrics.setLocks(h.locks.Len())

		h.rooms.Leave(s.TenantID, connectionID)
		h.broadcastToRoom(s.TenantID, domain.EventUserLeft, domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName})
		h.metrics.setRooms(len(h.rooms.Tenants()))
		h.auditAsync(s, "room.leave", s.TenantID, "disconnected")
	}
	h.log.Info("connection closed",
		zap.String("connection_id", connectionID),
		zap.String("user_id", s.UserID),
		zap.String("tenant_id", s.TenantID),
	)
}

// JoinRoom binds the connection to a tenant and adds it to the tenant room.
// Other members receive user:joined; the ack lists everyone online in the
// room, including the joiner.
func (h *Hub) JoinRoom(ctx context.Context, connectionID, tenantID, userID, displayName string) (*JoinResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.registry.Bind(connectionID, tenantID, userID, displayName)
	if err != nil {
		return nil, err
	}
	h.rooms.Join(tenantID, connectionID)
	h.metrics.setRooms(len(h.rooms.Tenants()))

	h.broadcastExcept(tenantID, connectionID, domain.EventUserJoined, domain.UserJoined{
		UserRef:  domain.UserRef{UserID: userID, DisplayName: displayName},
		JoinedAt: domain.Timestamp(s.JoinedAt),
	})
	h.auditAsync(s, "room.join", tenantID, "")
	h.log.Info("user joined room",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.String("connection_id", connectionID),
	)

	return &JoinResult{
		ConnectionID:  connectionID,
		MembersOnline: h.membersPresence(tenantID),
	}, nil
}

// LeaveRoom removes the connection from its room without closing the
// connection. The session stays bound; rejoining requires a new connection.
// Leaving when not a member is a no-op.
func (h *Hub) LeaveRoom(ctx context.Context, connectionID, tenantID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return ErrNotBound
	}
	if tenantID != "" && tenantID != s.TenantID {
		return ErrTenantMismatch
	}
	h.rooms.Leave(s.TenantID, connectionID)
	h.router.Unsubscribe(dashboardChannel(s.TenantID), connectionID)
	h.broadcastToRoom(s.TenantID, domain.EventUserLeft, domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName})
	h.metrics.setRooms(len(h.rooms.Tenants()))
	h.auditAsync(s, "room.leave", s.TenantID, "")
	return nil
}

// ChangePage records the session's new navigation location and announces it
// to the rest of the room. The originator is skipped: it already knows.
func (h *Hub) ChangePage(ctx context.Context, connectionID, page string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.registry.UpdatePage(connectionID, page)
	if err != nil {
		return err
	}
	h.broadcastExcept(s.TenantID, connectionID, domain.EventUserPageChanged, domain.PageChanged{
		UserRef: domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName},
		Page:    page,
	})
	return nil
}

// MoveCursor fans the cursor position out to the rest of the room. It is
// fire-and-forget: an unbound connection is silently ignored.
func (h *Hub) MoveCursor(connectionID string, x, y float64, page string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return
	}
	h.broadcastExcept(s.TenantID, connectionID, domain.EventCursorUpdate, domain.CursorUpdate{
		UserRef: domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName},
		X:       x,
		Y:       y,
		Page:    page,
	})
}

// LockAction takes the advisory edit lock for recordID. On success the whole
// room (the acquirer included) receives action:locked. On contention the
// caller gets *AlreadyLockedError with the current holder.
func (h *Hub) LockAction(ctx context.Context, connectionID, recordID string) (domain.ActionLock, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return domain.ActionLock{}, ErrNotBound
	}
	lock, err := h.locks.Acquire(recordID, s.UserID, s.DisplayName)
	if err != nil {
		return domain.ActionLock{}, err
	}
	h.metrics.setLocks(h.locks.Len())
	h.broadcastToRoom(s.TenantID, domain.EventActionLocked, domain.ActionLocked{
		RecordID: recordID,
		LockedBy: domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName},
		LockedAt: domain.Timestamp(lock.AcquiredAt),
	})
	h.auditAsync(s, "action.lock", recordID, "")
	return lock, nil
}

// UnlockAction releases the advisory lock and announces action:unlocked to
// the room. Releasing an unlocked record returns ErrNotLocked.
func (h *Hub) UnlockAction(ctx context.Context, connectionID, recordID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return ErrNotBound
	}
	if _, err := h.locks.Release(recordID); err != nil {
		return err
	}
	h.metrics.setLocks(h.locks.Len())
	h.broadcastToRoom(s.TenantID, domain.EventActionUnlocked, domain.ActionUnlocked{RecordID: recordID})
	h.auditAsync(s, "action.unlock", recordID, "")
	return nil
}

// AddComment broadcasts a realtime comment to the room and returns it for the
// sender's ack. Comments are not persisted by the hub.
func (h *Hub) AddComment(ctx context.Context, connectionID, entityType, entityID, content string) (domain.Comment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return domain.Comment{}, ErrNotBound
	}
	comment := domain.Comment{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Content:    content,
		Author:     domain.UserRef{UserID: s.UserID, DisplayName: s.DisplayName},
		CreatedAt:  domain.Timestamp(h.nowF()),
	}
	h.broadcastToRoom(s.TenantID, domain.EventCommentNew, comment)
	return comment, nil
}

// SubscribeDashboard adds the connection to its tenant's dashboard channel.
// Dashboard pushes layer on room membership, so an unbound connection gets
// ErrNotBound.
func (h *Hub) SubscribeDashboard(connectionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return ErrNotBound
	}
	h.router.Subscribe(dashboardChannel(s.TenantID), connectionID)
	return nil
}

// UnsubscribeDashboard removes the connection from its tenant's dashboard
// channel. Unsubscribing when not subscribed (or not bound) is a no-op.
func (h *Hub) UnsubscribeDashboard(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.registry.Get(connectionID)
	if !ok || !s.Bound() {
		return
	}
	h.router.Unsubscribe(dashboardChannel(s.TenantID), connectionID)
}

// PushMetricsUpdate delivers a dashboard metrics snapshot to the tenant's
// dashboard subscribers. The snapshot is opaque to the hub.
func (h *Hub) PushMetricsUpdate(tenantID string, metrics json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.incEvent(domain.EventDashboardUpdate)
	h.router.ToSubscribers(dashboardChannel(tenantID), domain.EventDashboardUpdate, domain.DashboardUpdate{
		Metrics:   metrics,
		UpdatedAt: domain.Timestamp(h.nowF()),
	})
}

// PushNotification stamps the notification (ID, CreatedAt, Read=false) and
// broadcasts it to the tenant room. The stamped notification is returned so
// callers that persist notifications store exactly what was emitted.
func (h *Hub) PushNotification(tenantID string, n domain.Notification) domain.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	n.ID = uuid.New().String()
	n.TenantID = tenantID
	n.CreatedAt = h.nowF().UTC()
	n.Read = false
	h.broadcastToRoom(tenantID, domain.EventNotification, n)
	h.log.Info("notification pushed",
		zap.String("tenant_id", tenantID),
		zap.String("category", n.Category),
		zap.String("title", n.Title),
	)
	return n
}

// Broadcast delivers an arbitrary named event to every member of the tenant
// room. Used by the facade for domain announcements.
func (h *Hub) Broadcast(tenantID, eventName string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastToRoom(tenantID, eventName, payload)
}

// ConnectedUsersCount returns the number of connections in the tenant room.
func (h *Hub) ConnectedUsersCount(tenantID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.Count(tenantID)
}

// Stats returns a hub-wide snapshot for operational tooling. Tenants without
// members do not appear in ConnectionsByTenant.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TotalConnections:    h.registry.Len(),
		ActiveTenants:       len(h.rooms.Tenants()),
		ConnectionsByTenant: h.rooms.Tenants(),
	}
}

// LockHolder returns the current holder of the record's advisory lock.
func (h *Hub) LockHolder(recordID string) (domain.ActionLock, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locks.Holder(recordID)
}

// membersPresence snapshots the presence of everyone in the tenant room.
// Callers hold h.mu.
func (h *Hub) membersPresence(tenantID string) []domain.UserPresence {
	now := h.nowF()
	members := h.rooms.MembersOf(tenantID)
	out := make([]domain.UserPresence, 0, len(members))
	for connectionID := range members {
		if s, ok := h.registry.Get(connectionID); ok {
			out = append(out, s.Presence(now))
		}
	}
	return out
}

func (h *Hub) broadcastToRoom(tenantID, eventName string, payload any) {
	h.metrics.incEvent(eventName)
	h.router.ToRoom(tenantID, eventName, payload)
}

func (h *Hub) broadcastExcept(tenantID, senderConnectionID, eventName string, payload any) {
	h.metrics.incEvent(eventName)
	h.router.ToRoomExceptSender(tenantID, senderConnectionID, eventName, payload)
}

// auditAsync records an audit event without blocking the hub. Callers hold
// h.mu; the write happens on its own goroutine with its own deadline.
func (h *Hub) auditAsync(s *domain.Session, action, resource, metadata string) {
	if h.audit == nil {
		return
	}
	tenantID, userID := s.TenantID, s.UserID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		h.audit.LogEvent(ctx, tenantID, userID, action, resource, metadata)
	}()
}

func dashboardChannel(tenantID string) string {
	return "dashboard:" + tenantID
}
