package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// persistTimeout bounds a single async notification write.
const persistTimeout = 5 * time.Second

// DefaultNR1AlertThreshold is the nr1 risk score at or above which an alert
// notification accompanies the assessment broadcast.
const DefaultNR1AlertThreshold = 3

// NotificationStore persists emitted notifications for later retrieval by the
// CRUD services. Persistence is best-effort; the facade logs and continues on
// failure.
type NotificationStore interface {
	Save(ctx context.Context, n *domain.Notification) error
}

// Facade is the single entry point domain services use to push events into
// the hub without knowing about connections or rooms. Each announce method
// builds the room broadcast and applies the threshold rules that decide
// whether a notification accompanies the event.
type Facade struct {
	hub   *Hub
	store NotificationStore
	log   *zap.Logger
	// nr1Threshold is the configurable risk score bound; see Options.
	nr1Threshold float64
	nowF         func() time.Time
}

// FacadeOptions configures a Facade.
type FacadeOptions struct {
	// Store persists pushed notifications. May be nil (emit-only).
	Store NotificationStore
	// Logger for persistence failures. A no-op logger is used when nil.
	Logger *zap.Logger
	// NR1AlertThreshold overrides DefaultNR1AlertThreshold when positive.
	NR1AlertThreshold float64
}

// NewFacade returns a Facade over the given hub.
func NewFacade(h *Hub, opts FacadeOptions) *Facade {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	threshold := opts.NR1AlertThreshold
	if threshold <= 0 {
		threshold = DefaultNR1AlertThreshold
	}
	return &Facade{
		hub:          h,
		store:        opts.Store,
		log:          log,
		nr1Threshold: threshold,
		nowF:         time.Now,
	}
}

// AnnounceAssessmentSubmitted broadcasts assessment:submitted to the tenant
// room. An nr1 assessment whose score reaches the alert threshold also pushes
// a high-risk alert notification.
func (f *Facade) AnnounceAssessmentSubmitted(ctx context.Context, tenantID string, a domain.AssessmentSubmitted) {
	if a.SubmittedAt == "" {
		a.SubmittedAt = domain.Timestamp(f.nowF())
	}
	f.hub.Broadcast(tenantID, domain.EventAssessmentSubmitted, a)

	if a.Module == domain.CategoryNR1 && a.Score != nil && *a.Score >= f.nr1Threshold {
		f.PushNotification(ctx, tenantID, domain.Notification{
			Type:      domain.NotificationAlert,
			Category:  domain.CategoryNR1,
			Title:     "Alto risco NR-1 detectado",
			Message:   fmt.Sprintf("%s apresentou score de alto risco na avaliação NR-1", a.EmployeeName),
			ActionURL: fmt.Sprintf("/php/nr1?assessment=%s", a.AssessmentID),
		})
	}
}

// AnnounceActionPlanUpdate broadcasts action_plan:update to the tenant room.
// A plan reaching "completed" also pushes a success notification.
func (f *Facade) AnnounceActionPlanUpdate(ctx context.Context, tenantID string, u domain.ActionPlanUpdate) {
	if u.UpdatedAt == "" {
		u.UpdatedAt = domain.Timestamp(f.nowF())
	}
	f.hub.Broadcast(tenantID, domain.EventActionPlanUpdate, u)

	if u.Action == domain.ActionPlanCompleted {
		f.PushNotification(ctx, tenantID, domain.Notification{
			Type:      domain.NotificationSuccess,
			Category:  domain.CategoryActionPlan,
			Title:     "Plano de ação concluído",
			Message:   fmt.Sprintf("%q foi marcado como concluído por %s", u.Title, u.UpdatedBy),
			ActionURL: fmt.Sprintf("/php/action-plans/%s", u.ActionPlanID),
		})
	}
}

// AnnounceGoalAchieved broadcasts goal:achieved to the tenant room and always
// pushes a success notification alongside it.
func (f *Facade) AnnounceGoalAchieved(ctx context.Context, tenantID string, g domain.GoalAchieved) {
	if g.AchievedAt == "" {
		g.AchievedAt = domain.Timestamp(f.nowF())
	}
	f.hub.Broadcast(tenantID, domain.EventGoalAchieved, g)

	f.PushNotification(ctx, tenantID, domain.Notification{
		Type:     domain.NotificationSuccess,
		Category: domain.CategorySystem,
		Title:    "Meta atingida!",
		Message:  fmt.Sprintf("%s: %g/%g", g.GoalName, g.AchievedValue, g.TargetValue),
	})
}

// PushDashboardUpdate forwards a metrics snapshot to the tenant's dashboard
// subscribers.
func (f *Facade) PushDashboardUpdate(tenantID string, metrics json.RawMessage) {
	f.hub.PushMetricsUpdate(tenantID, metrics)
}

// PushNotification emits the notification to the tenant room and persists the
// stamped copy when a store is configured. Returns the stamped notification.
func (f *Facade) PushNotification(ctx context.Context, tenantID string, n domain.Notification) domain.Notification {
	stamped := f.hub.PushNotification(tenantID, n)
	f.persistAsync(stamped)
	return stamped
}

// persistAsync saves the notification on its own goroutine so a slow store
// never delays the broadcast path. Failures are logged, not surfaced.
func (f *Facade) persistAsync(n domain.Notification) {
	if f.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := f.store.Save(ctx, &n); err != nil {
			f.log.Error("failed to persist notification",
				zap.String("notification_id", n.ID),
				zap.String("tenant_id", n.TenantID),
				zap.Error(err),
			)
		}
	}()
}
