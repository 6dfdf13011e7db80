package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventSessionRotated  EventType = "session_rotated"
	EventSessionRevoked  EventType = "session_revoked"
	EventSessionEvicted  EventType = "session_evicted"
	EventLoginFailed     EventType = "login_failed"
	EventRefreshRejected EventType = "refresh_rejected"
)

// Event is one session lifecycle event. It never carries credentials or hashes.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	AccountID     string    `json:"account_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	NetworkOrigin string    `json:"network_origin,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEvent returns an event of type t with a fresh id, stamped now.
func NewEvent(t EventType, accountID, sessionID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		AccountID: accountID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
}

// EventEmitter emits session events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(context.Context, *Event) error { return nil }

// Multi fans an event out to every emitter. All emitters are called; their errors are joined.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
