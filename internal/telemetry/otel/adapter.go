package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authcore/backend/internal/telemetry"
)

const instrumentationName = "authcore.sessions"

// NewEventEmitter returns an EventEmitter that sends session events as OTel log records via
// the given LoggerProvider. A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Noop{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// RecordEmitter is the part of otellog.Logger the adapter uses.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record. The body is the event type; non-empty
// fields become attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetSeverity(severityOf(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))

	for _, a := range []struct{ key, val string }{
		{"event_id", event.ID},
		{"event_type", string(event.Type)},
		{"account_id", event.AccountID},
		{"session_id", event.SessionID},
		{"reason", event.Reason},
		{"user_agent", event.UserAgent},
		{"network_origin", event.NetworkOrigin},
	} {
		if a.val != "" {
			rec.AddAttributes(otellog.String(a.key, a.val))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityOf(t telemetry.EventType) otellog.Severity {
	switch t {
	case telemetry.EventLoginFailed, telemetry.EventRefreshRejected:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
