package domain

import "time"

// Notification types, mirroring the UI's severity palette.
const (
	NotificationAlert   = "alert"
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
)

// Notification categories, one per product module plus "system".
const (
	CategoryTFCI       = "tfci"
	CategoryNR1        = "nr1"
	CategoryCOPC       = "copc"
	CategoryActionPlan = "action_plan"
	CategorySystem     = "system"
)

// Notification is an ephemeral payload pushed to a tenant room. The hub stamps
// ID, CreatedAt, and Read at emission time; any longer-lived persistence is the
// caller's responsibility. Read-state is a client-local concern.
type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"org_id"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL string    `json:"action_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}
