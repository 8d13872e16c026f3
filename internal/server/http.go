// Package server assembles the HTTP surface: the WebSocket endpoint, the
// internal REST API that backend services use to push events into the hub,
// and the health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/hub"
	"peoplepulse/realtime-hub/internal/hub/domain"
	"peoplepulse/realtime-hub/internal/server/middleware"
)

// Pinger is the readiness dependency (e.g. *sql.DB). Nil skips the DB check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the dependencies the HTTP surface is assembled from.
type Deps struct {
	// Hub serves stats and room counts. Required.
	Hub *hub.Hub
	// Facade receives pushed domain events and notifications. Required.
	Facade *hub.Facade
	// WSHandler serves GET /ws. Required.
	WSHandler http.Handler
	// InternalToken guards /internal/v1. Empty disables auth (development).
	InternalToken string
	// Pinger is checked by /healthz readiness. May be nil.
	Pinger Pinger
	// PromRegistry backs GET /metrics. May be nil to hide the endpoint.
	PromRegistry *prometheus.Registry
	// Logger for request-level warnings. A no-op logger is used when nil.
	Logger *zap.Logger
}

// NewRouter builds the full route table. Handlers are wrapped with otelhttp so
// spans carry the route template as the span name.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	a := &api{hub: deps.Hub, facade: deps.Facade, pinger: deps.Pinger, log: log}

	r := mux.NewRouter()
	r.Handle("/ws", deps.WSHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	if deps.PromRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	internal := r.PathPrefix("/internal/v1").Subrouter()
	internal.Use(middleware.InternalAuth(deps.InternalToken))
	internal.HandleFunc("/events/assessment-submitted", a.assessmentSubmitted).Methods(http.MethodPost)
	internal.HandleFunc("/events/action-plan-update", a.actionPlanUpdate).Methods(http.MethodPost)
	internal.HandleFunc("/events/goal-achieved", a.goalAchieved).Methods(http.MethodPost)
	internal.HandleFunc("/events/dashboard-update", a.dashboardUpdate).Methods(http.MethodPost)
	internal.HandleFunc("/notifications", a.pushNotification).Methods(http.MethodPost)
	internal.HandleFunc("/stats", a.stats).Methods(http.MethodGet)
	internal.HandleFunc("/rooms/{tenantID}/count", a.roomCount).Methods(http.MethodGet)

	return otelhttp.NewHandler(r, "realtime-hub",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			if route := mux.CurrentRoute(req); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					return req.Method + " " + tmpl
				}
			}
			return req.Method + " " + req.URL.Path
		}),
	)
}

type api struct {
	hub    *hub.Hub
	facade *hub.Facade
	pinger Pinger
	log    *zap.Logger
}

type assessmentRequest struct {
	OrgID string `json:"org_id"`
	domain.AssessmentSubmitted
}

func (a *api) assessmentSubmitted(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrgID == "" || req.AssessmentID == "" {
		writeError(w, http.StatusBadRequest, "org_id and assessment_id are required")
		return
	}
	a.facade.AnnounceAssessmentSubmitted(r.Context(), req.OrgID, req.AssessmentSubmitted)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}

type actionPlanRequest struct {
	OrgID string `json:"org_id"`
	domain.ActionPlanUpdate
}

func (a *api) actionPlanUpdate(w http.ResponseWriter, r *http.Request) {
	var req actionPlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrgID == "" || req.ActionPlanID == "" {
		writeError(w, http.StatusBadRequest, "org_id and action_plan_id are required")
		return
	}
	a.facade.AnnounceActionPlanUpdate(r.Context(), req.OrgID, req.ActionPlanUpdate)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}

type goalAchievedRequest struct {
	OrgID string `json:"org_id"`
	domain.GoalAchieved
}

func (a *api) goalAchieved(w http.ResponseWriter, r *http.Request) {
	var req goalAchievedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrgID == "" || req.GoalName == "" {
		writeError(w, http.StatusBadRequest, "org_id and goal_name are required")
		return
	}
	a.facade.AnnounceGoalAchieved(r.Context(), req.OrgID, req.GoalAchieved)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}

type dashboardUpdateRequest struct {
	OrgID   string          `json:"org_id"`
	Metrics json.RawMessage `json:"metrics"`
}

func (a *api) dashboardUpdate(w http.ResponseWriter, r *http.Request) {
	var req dashboardUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrgID == "" || len(req.Metrics) == 0 {
		writeError(w, http.StatusBadRequest, "org_id and metrics are required")
		return
	}
	a.facade.PushDashboardUpdate(req.OrgID, req.Metrics)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "broadcast"})
}

func (a *api) pushNotification(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if !decodeBody(w, r, &n) {
		return
	}
	if n.TenantID == "" || n.Title == "" {
		writeError(w, http.StatusBadRequest, "org_id and title are required")
		return
	}
	stamped := a.facade.PushNotification(r.Context(), n.TenantID, n)
	writeJSON(w, http.StatusCreated, stamped)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.Stats())
}

func (a *api) roomCount(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]
	writeJSON(w, http.StatusOK, map[string]any{
		"org_id": tenantID,
		"count":  a.hub.ConnectedUsersCount(tenantID),
	})
}

// health reports liveness always and readiness of the database when one is
// configured.
func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.pinger.PingContext(ctx); err != nil {
			a.log.Warn("health: database ping failed", zap.Error(err))
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	writeJSON(w, code, status)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
