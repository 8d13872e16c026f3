package ws

import "encoding/json"

// Inbound message types, one per client operation.
const (
	MsgJoinRoom             = "join-room"
	MsgLeaveRoom            = "leave-room"
	MsgPageChange           = "page-change"
	MsgCursorMove           = "cursor-move"
	MsgLockAction           = "lock-action"
	MsgUnlockAction         = "unlock-action"
	MsgAddComment           = "add-comment"
	MsgDashboardSubscribe   = "dashboard-subscribe"
	MsgDashboardUnsubscribe = "dashboard-unsubscribe"
)

// Machine-readable error codes carried in acks. These are expected,
// recoverable conditions returned to the client, never transport faults.
const (
	ErrCodeNotBound       = "NotBound"
	ErrCodeAlreadyBound   = "AlreadyBound"
	ErrCodeAlreadyLocked  = "AlreadyLocked"
	ErrCodeNotLocked      = "NotLocked"
	ErrCodeTenantMismatch = "TenantMismatch"
	ErrCodeBadPayload     = "BadPayload"
	ErrCodeUnknownType    = "UnknownType"
	ErrCodeUnauthorized   = "Unauthorized"
)

// Inbound is the envelope for client messages: {"id", "type", "payload"}.
// ID is an optional client-chosen correlation token echoed in the ack.
type Inbound struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload carries join-room identity. When handshake auth is enabled the
// fields must match the token claims.
type JoinPayload struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// LeavePayload carries the room to leave.
type LeavePayload struct {
	TenantID string `json:"tenant_id"`
}

// PagePayload carries a navigation change.
type PagePayload struct {
	Page string `json:"page"`
}

// CursorPayload carries a cursor position. Fire-and-forget, no ack.
type CursorPayload struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page string  `json:"page"`
}

// LockPayload names the record to lock or unlock.
type LockPayload struct {
	RecordID string `json:"record_id"`
}

// CommentPayload carries a realtime comment.
type CommentPayload struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Content    string `json:"content"`
}

// Ack is the structured acknowledgment frame for an inbound message.
type Ack struct {
	Type    string `json:"type"` // always "ack"
	ReplyTo string `json:"reply_to,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Holder is set on AlreadyLocked so the client can render
	// "being edited by X".
	Holder string `json:"holder,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// EventFrame wraps an outbound broadcast event.
type EventFrame struct {
	Type    string `json:"type"` // always "event"
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func ackOK(replyTo string, data any) Ack {
	return Ack{Type: "ack", ReplyTo: replyTo, Success: true, Data: data}
}

func ackErr(replyTo, code string) Ack {
	return Ack{Type: "ack", ReplyTo: replyTo, Success: false, Error: code}
}
