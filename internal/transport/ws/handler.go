// Package ws exposes the hub over a WebSocket endpoint: one upgraded
// connection per client, JSON envelopes in, acks and broadcast events out.
// The transport is interchangeable; the hub only sees the Sender interface.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/hub"
	"peoplepulse/realtime-hub/internal/security"
)

// Handler upgrades HTTP requests to WebSocket connections and bridges them to
// the hub.
type Handler struct {
	hub       *hub.Hub
	validator *security.TokenValidator // nil disables handshake auth
	log       *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler returns a WebSocket handler for the given hub. validator may be
// nil, in which case join-room identity is taken from the payload unverified
// (development mode). log may be nil.
func NewHandler(h *hub.Hub, validator *security.TokenValidator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		hub:       h,
		validator: validator,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client is served from another origin; tenant
			// isolation is enforced by join-room, not by Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection, registers it with the hub, and runs the
// read/write pumps. It returns when the connection dies; disconnect cleanup
// happens on the read pump's way out.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var claimUserID, claimTenantID, claimDisplayName string
	if h.validator != nil {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		userID, tenantID, displayName, err := h.validator.ValidateConnection(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		claimUserID, claimTenantID, claimDisplayName = userID, tenantID, displayName
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connectionID := uuid.New().String()
	c := newClient(connectionID, conn, h.log)
	c.claimUserID = claimUserID
	c.claimTenantID = claimTenantID
	c.claimDisplayName = claimDisplayName

	h.hub.Connect(connectionID, c)

	go c.writePump()
	c.readPump(h.dispatch)

	h.hub.Disconnect(r.Context(), connectionID)
}

// dispatch routes one inbound message to the matching hub operation and
// queues the ack. Runs on the connection's read goroutine, so one client's
// messages are processed in the order sent.
func (h *Handler) dispatch(c *client, msg Inbound) {
	ctx := context.Background()

	switch msg.Type {
	case MsgJoinRoom:
		var p JoinPayload
		if !decode(c, msg, &p) {
			return
		}
		if h.validator != nil {
			// Identity comes from the token; the payload must agree.
			if p.UserID != c.claimUserID || p.TenantID != c.claimTenantID {
				c.enqueue(ackErr(msg.ID, ErrCodeUnauthorized))
				return
			}
			if c.claimDisplayName != "" {
				p.DisplayName = c.claimDisplayName
			}
		}
		result, err := h.hub.JoinRoom(ctx, c.connectionID, p.TenantID, p.UserID, p.DisplayName)
		if err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, result))

	case MsgLeaveRoom:
		var p LeavePayload
		if !decode(c, msg, &p) {
			return
		}
		if err := h.hub.LeaveRoom(ctx, c.connectionID, p.TenantID); err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, nil))

	case MsgPageChange:
		var p PagePayload
		if !decode(c, msg, &p) {
			return
		}
		if err := h.hub.ChangePage(ctx, c.connectionID, p.Page); err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, nil))

	case MsgCursorMove:
		// Fire-and-forget: no ack, bad payloads are dropped.
		var p CursorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.hub.MoveCursor(c.connectionID, p.X, p.Y, p.Page)

	case MsgLockAction:
		var p LockPayload
		if !decode(c, msg, &p) {
			return
		}
		_, err := h.hub.LockAction(ctx, c.connectionID, p.RecordID)
		if err != nil {
			ack := ackErr(msg.ID, errCode(err))
			var lockedErr *hub.AlreadyLockedError
			if errors.As(err, &lockedErr) {
				ack.Holder = lockedErr.Holder.HolderUserID
			}
			c.enqueue(ack)
			return
		}
		c.enqueue(ackOK(msg.ID, nil))

	case MsgUnlockAction:
		var p LockPayload
		if !decode(c, msg, &p) {
			return
		}
		if err := h.hub.UnlockAction(ctx, c.connectionID, p.RecordID); err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, nil))

	case MsgAddComment:
		var p CommentPayload
		if !decode(c, msg, &p) {
			return
		}
		comment, err := h.hub.AddComment(ctx, c.connectionID, p.EntityType, p.EntityID, p.Content)
		if err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, map[string]any{"comment": comment}))

	case MsgDashboardSubscribe:
		if err := h.hub.SubscribeDashboard(c.connectionID); err != nil {
			c.enqueue(ackErr(msg.ID, errCode(err)))
			return
		}
		c.enqueue(ackOK(msg.ID, map[string]any{"message": "subscribed to dashboard updates"}))

	case MsgDashboardUnsubscribe:
		h.hub.UnsubscribeDashboard(c.connectionID)
		c.enqueue(ackOK(msg.ID, nil))

	default:
		c.enqueue(ackErr(msg.ID, ErrCodeUnknownType))
	}
}

// decode unmarshals the payload, acking BadPayload on failure.
func decode(c *client, msg Inbound, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		c.enqueue(ackErr(msg.ID, ErrCodeBadPayload))
		return false
	}
	return true
}

// errCode maps hub errors to wire error codes.
func errCode(err error) string {
	var lockedErr *hub.AlreadyLockedError
	switch {
	case errors.Is(err, hub.ErrNotBound):
		return ErrCodeNotBound
	case errors.Is(err, hub.ErrAlreadyBound):
		return ErrCodeAlreadyBound
	case errors.Is(err, hub.ErrNotLocked):
		return ErrCodeNotLocked
	case errors.Is(err, hub.ErrTenantMismatch):
		return ErrCodeTenantMismatch
	case errors.As(err, &lockedErr):
		return ErrCodeAlreadyLocked
	default:
		return ErrCodeBadPayload
	}
}

// bearerToken extracts the client token from the Authorization header or,
// for browser clients that cannot set headers on WebSocket dials, the
// "token" query parameter.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}
