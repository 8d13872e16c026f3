package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// mockStore receives persisted notifications through a channel so tests can
// wait for the async save without sleeping.
type mockStore struct {
	saved   chan domain.Notification
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{saved: make(chan domain.Notification, 8)}
}

func (m *mockStore) Save(ctx context.Context, n *domain.Notification) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved <- *n
	return nil
}

func (m *mockStore) waitSaved(t *testing.T) domain.Notification {
	t.Helper()
	select {
	case n := <-m.saved:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification save")
		return domain.Notification{}
	}
}

func scoreOf(v float64) *float64 { return &v }

func TestFacade_AssessmentSubmitted_Broadcasts(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       "tfci",
		AssessmentID: "a-1",
		EmployeeName: "Carla",
	})

	got, _ := lastEvent(t, s1, domain.EventAssessmentSubmitted).Payload.(domain.AssessmentSubmitted)
	if got.AssessmentID != "a-1" {
		t.Errorf("assessment_id = %q, want %q", got.AssessmentID, "a-1")
	}
	if got.SubmittedAt == "" {
		t.Error("submitted_at should be stamped when empty")
	}
	if n := countEvents(s1, domain.EventNotification); n != 0 {
		t.Errorf("received %d notifications, want 0 for non-nr1 module", n)
	}
}

func TestFacade_AssessmentSubmitted_NR1HighRiskAlert(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       domain.CategoryNR1,
		AssessmentID: "a-1",
		EmployeeName: "Carla",
		Score:        scoreOf(3),
	})

	got, _ := lastEvent(t, s1, domain.EventNotification).Payload.(domain.Notification)
	if got.Type != domain.NotificationAlert {
		t.Errorf("type = %q, want %q", got.Type, domain.NotificationAlert)
	}
	if got.Category != domain.CategoryNR1 {
		t.Errorf("category = %q, want %q", got.Category, domain.CategoryNR1)
	}
	if got.Title != "Alto risco NR-1 detectado" {
		t.Errorf("title = %q, want the high-risk title", got.Title)
	}
	if got.ActionURL != "/php/nr1?assessment=a-1" {
		t.Errorf("action_url = %q, want %q", got.ActionURL, "/php/nr1?assessment=a-1")
	}
}

func TestFacade_AssessmentSubmitted_BelowThreshold(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       domain.CategoryNR1,
		AssessmentID: "a-1",
		EmployeeName: "Carla",
		Score:        scoreOf(2.9),
	})

	if n := countEvents(s1, domain.EventNotification); n != 0 {
		t.Errorf("received %d notifications, want 0 below the threshold", n)
	}
}

func TestFacade_AssessmentSubmitted_NilScore(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       domain.CategoryNR1,
		AssessmentID: "a-1",
		EmployeeName: "Carla",
	})

	if n := countEvents(s1, domain.EventNotification); n != 0 {
		t.Errorf("received %d notifications, want 0 when score is absent", n)
	}
}

func TestFacade_AssessmentSubmitted_CustomThreshold(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{NR1AlertThreshold: 4})

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       domain.CategoryNR1,
		AssessmentID: "a-1",
		EmployeeName: "Carla",
		Score:        scoreOf(3.5),
	})
	if n := countEvents(s1, domain.EventNotification); n != 0 {
		t.Errorf("received %d notifications, want 0 below the raised threshold", n)
	}

	f.AnnounceAssessmentSubmitted(context.Background(), "acme", domain.AssessmentSubmitted{
		Module:       domain.CategoryNR1,
		AssessmentID: "a-2",
		EmployeeName: "Carla",
		Score:        scoreOf(4),
	})
	if n := countEvents(s1, domain.EventNotification); n != 1 {
		t.Errorf("received %d notifications, want 1 at the raised threshold", n)
	}
}

func TestFacade_ActionPlanUpdate_CompletedNotifies(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceActionPlanUpdate(context.Background(), "acme", domain.ActionPlanUpdate{
		ActionPlanID: "plan-1",
		Action:       domain.ActionPlanCompleted,
		Title:        "Reduzir turnover",
		UpdatedBy:    "Ana",
	})

	if n := countEvents(s1, domain.EventActionPlanUpdate); n != 1 {
		t.Errorf("received %d action_plan:update, want 1", n)
	}
	got, _ := lastEvent(t, s1, domain.EventNotification).Payload.(domain.Notification)
	if got.Type != domain.NotificationSuccess {
		t.Errorf("type = %q, want %q", got.Type, domain.NotificationSuccess)
	}
	if got.Category != domain.CategoryActionPlan {
		t.Errorf("category = %q, want %q", got.Category, domain.CategoryActionPlan)
	}
	if got.Title != "Plano de ação concluído" {
		t.Errorf("title = %q, want the completion title", got.Title)
	}
}

func TestFacade_ActionPlanUpdate_OtherActionsSilent(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	for _, action := range []string{domain.ActionPlanCreated, domain.ActionPlanUpdated, domain.ActionPlanDeleted} {
		f.AnnounceActionPlanUpdate(context.Background(), "acme", domain.ActionPlanUpdate{
			ActionPlanID: "plan-1",
			Action:       action,
			Title:        "Reduzir turnover",
			UpdatedBy:    "Ana",
		})
	}

	if n := countEvents(s1, domain.EventActionPlanUpdate); n != 3 {
		t.Errorf("received %d action_plan:update, want 3", n)
	}
	if n := countEvents(s1, domain.EventNotification); n != 0 {
		t.Errorf("received %d notifications, want 0 for non-completed actions", n)
	}
}

func TestFacade_GoalAchieved_AlwaysNotifies(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	f.AnnounceGoalAchieved(context.Background(), "acme", domain.GoalAchieved{
		GoalType:      "hiring",
		GoalName:      "Q1 Hires",
		AchievedValue: 12,
		TargetValue:   10,
	})

	if n := countEvents(s1, domain.EventGoalAchieved); n != 1 {
		t.Errorf("received %d goal:achieved, want 1", n)
	}
	got, _ := lastEvent(t, s1, domain.EventNotification).Payload.(domain.Notification)
	if got.Type != domain.NotificationSuccess {
		t.Errorf("type = %q, want %q", got.Type, domain.NotificationSuccess)
	}
	if got.Message != "Q1 Hires: 12/10" {
		t.Errorf("message = %q, want %q", got.Message, "Q1 Hires: 12/10")
	}
}

func TestFacade_PushNotification_Persists(t *testing.T) {
	h := newTestHub()
	join(t, h, "c1", "acme", "u1")
	store := newMockStore()
	f := NewFacade(h, FacadeOptions{Store: store})

	stamped := f.PushNotification(context.Background(), "acme", domain.Notification{
		Type:     domain.NotificationInfo,
		Category: domain.CategorySystem,
		Title:    "Manutenção programada",
	})

	saved := store.waitSaved(t)
	if saved.ID != stamped.ID {
		t.Errorf("saved ID = %q, want %q (persist exactly what was emitted)", saved.ID, stamped.ID)
	}
	if saved.TenantID != "acme" {
		t.Errorf("saved TenantID = %q, want %q", saved.TenantID, "acme")
	}
}

func TestFacade_PushNotification_StoreFailureIsSilent(t *testing.T) {
	h := newTestHub()
	s1 := join(t, h, "c1", "acme", "u1")
	store := newMockStore()
	store.saveErr = errors.New("database down")
	f := NewFacade(h, FacadeOptions{Store: store})

	// Broadcast must happen even when persistence fails.
	f.PushNotification(context.Background(), "acme", domain.Notification{
		Type:  domain.NotificationInfo,
		Title: "still delivered",
	})

	if n := countEvents(s1, domain.EventNotification); n != 1 {
		t.Errorf("received %d notifications, want 1 despite store failure", n)
	}
}

func TestFacade_NoStore(t *testing.T) {
	h := newTestHub()
	join(t, h, "c1", "acme", "u1")
	f := NewFacade(h, FacadeOptions{})

	// Must not panic without a store.
	f.PushNotification(context.Background(), "acme", domain.Notification{Title: "emit-only"})
}
