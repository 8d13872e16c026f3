// Package audit records presence and lock events for operational forensics.
// Recording is best-effort: a failed write never affects the hub.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peoplepulse/realtime-hub/internal/audit/domain"
	auditrepo "peoplepulse/realtime-hub/internal/audit/repository"
)

// SentinelTenantID is used for events that carry no tenant.
const SentinelTenantID = "_system"

// Logger persists audit events through the audit repository. It implements
// the hub's AuditLogger interface.
type Logger struct {
	repo auditrepo.Repository
	log  *zap.Logger
}

// NewLogger returns a Logger that persists to repo. log may be nil.
func NewLogger(repo auditrepo.Repository, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	if tenantID == "" {
		tenantID = SentinelTenantID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("failed to record audit event",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}
