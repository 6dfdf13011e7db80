// Package audit persists session lifecycle events as a queryable per-account trail.
package audit

import (
	"context"

	"authcore/backend/internal/audit/domain"
	auditrepo "authcore/backend/internal/audit/repository"
	"authcore/backend/internal/telemetry"
)

// Logger is a telemetry.EventEmitter that writes each event to the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

var _ telemetry.EventEmitter = (*Logger)(nil)

// NewLogger returns a Logger persisting to repo. A nil repo makes Emit a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Emit writes one audit entry for event.
func (l *Logger) Emit(ctx context.Context, event *telemetry.Event) error {
	if l == nil || l.repo == nil || event == nil {
		return nil
	}
	return l.repo.Create(ctx, &domain.Entry{
		ID:            event.ID,
		EventType:     string(event.Type),
		AccountID:     event.AccountID,
		SessionID:     event.SessionID,
		Reason:        event.Reason,
		UserAgent:     event.UserAgent,
		NetworkOrigin: event.NetworkOrigin,
		CreatedAt:     event.CreatedAt,
	})
}
