package domain

import (
	"encoding/json"
	"time"
)

// Outbound event names pushed to room members and dashboard subscribers.
const (
	EventUserJoined          = "user:joined"
	EventUserLeft            = "user:left"
	EventUserPageChanged     = "user:page_changed"
	EventCursorUpdate        = "cursor:update"
	EventActionLocked        = "action:locked"
	EventActionUnlocked      = "action:unlocked"
	EventCommentNew          = "comment:new"
	EventDashboardUpdate     = "dashboard:update"
	EventNotification        = "notification"
	EventAssessmentSubmitted = "assessment:submitted"
	EventActionPlanUpdate    = "action_plan:update"
	EventGoalAchieved        = "goal:achieved"
)

// Event is one named payload delivered to a connection. Delivery is
// best-effort: an unreachable recipient drops the event silently.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// UserRef identifies the acting user in broadcast payloads.
type UserRef struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"user_name"`
}

// UserJoined announces a new room member.
type UserJoined struct {
	UserRef
	JoinedAt string `json:"joined_at"`
}

// PageChanged announces a member's navigation to another page.
type PageChanged struct {
	UserRef
	Page string `json:"page"`
}

// CursorUpdate carries a member's live cursor position on a page.
type CursorUpdate struct {
	UserRef
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page string  `json:"page"`
}

// ActionLocked announces that a record was taken for editing.
type ActionLocked struct {
	RecordID string  `json:"record_id"`
	LockedBy UserRef `json:"locked_by"`
	LockedAt string  `json:"locked_at"`
}

// ActionUnlocked announces that a record's edit lock was released.
type ActionUnlocked struct {
	RecordID string `json:"record_id"`
}

// Comment is a realtime comment on a domain entity. It is broadcast to the
// room and echoed back in the sender's ack; it is not persisted here.
type Comment struct {
	ID         string  `json:"id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	Content    string  `json:"content"`
	Author     UserRef `json:"author"`
	CreatedAt  string  `json:"created_at"`
}

// AssessmentSubmitted announces that an employee assessment was submitted in
// one of the product modules (tfci, nr1, copc). Score is optional; the nr1
// score drives the high-risk notification threshold.
type AssessmentSubmitted struct {
	Module       string   `json:"module"`
	AssessmentID string   `json:"assessment_id"`
	EmployeeName string   `json:"employee_name"`
	Score        *float64 `json:"score,omitempty"`
	SubmittedAt  string   `json:"submitted_at,omitempty"`
}

// Action plan lifecycle actions announced via ActionPlanUpdate.
const (
	ActionPlanCreated   = "created"
	ActionPlanUpdated   = "updated"
	ActionPlanCompleted = "completed"
	ActionPlanDeleted   = "deleted"
)

// ActionPlanUpdate announces a status change of an action plan.
type ActionPlanUpdate struct {
	ActionPlanID string `json:"action_plan_id"`
	Action       string `json:"action"`
	Title        string `json:"title"`
	UpdatedBy    string `json:"updated_by"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// GoalAchieved announces that a tenant goal or target was reached.
type GoalAchieved struct {
	GoalType      string  `json:"goal_type"`
	GoalName      string  `json:"goal_name"`
	AchievedValue float64 `json:"achieved_value"`
	TargetValue   float64 `json:"target_value"`
	AchievedAt    string  `json:"achieved_at,omitempty"`
}

// DashboardUpdate wraps a metrics snapshot pushed to dashboard subscribers.
// The snapshot is opaque to the hub; it is produced by the dashboard service
// and forwarded as-is.
type DashboardUpdate struct {
	Metrics   json.RawMessage `json:"metrics"`
	UpdatedAt string          `json:"updated_at"`
}

// Timestamp formats t the way all broadcast payloads carry time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
