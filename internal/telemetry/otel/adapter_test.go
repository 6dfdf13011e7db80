package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authcore/backend/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit.
type recordCapture struct {
	rec   otellog.Record
	count int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.count++
}

func attrsOf(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewEventEmitter_NilProvider(t *testing.T) {
	em := NewEventEmitter(nil)
	require.NotNil(t, em)
	assert.NoError(t, em.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSessionCreated, "a", "s")))
}

func TestNewEventEmitter_Provider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	em := NewEventEmitter(provider)
	assert.NoError(t, em.Emit(context.Background(), nil))
	assert.NoError(t, em.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSessionCreated, "a", "s")))
}

func TestEmit_AttributeMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := &telemetry.Event{
		ID:            "ev-1",
		Type:          telemetry.EventSessionEvicted,
		AccountID:     "acct-1",
		SessionID:     "sess-1",
		Reason:        "cap",
		UserAgent:     "curl/8.4.0",
		NetworkOrigin: "10.0.0.1",
		CreatedAt:     created,
	}
	require.NoError(t, em.Emit(context.Background(), ev))

	rec := capture.rec
	assert.Equal(t, created, rec.Timestamp())
	assert.Equal(t, "session_evicted", rec.Body().AsString())
	assert.Equal(t, otellog.SeverityInfo, rec.Severity())
	assert.Equal(t, map[string]string{
		"event_id":       "ev-1",
		"event_type":     "session_evicted",
		"account_id":     "acct-1",
		"session_id":     "sess-1",
		"reason":         "cap",
		"user_agent":     "curl/8.4.0",
		"network_origin": "10.0.0.1",
	}, attrsOf(rec))
}

func TestEmit_EmptyFieldsOmitted(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	require.NoError(t, em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLoginFailed}))

	attrs := attrsOf(capture.rec)
	assert.Equal(t, map[string]string{"event_type": "login_failed"}, attrs)
	assert.Equal(t, otellog.SeverityWarn, capture.rec.Severity())
}

func TestEmit_ZeroTimestampUsesNow(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	before := time.Now().UTC()
	require.NoError(t, em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventSessionRevoked}))
	ts := capture.rec.Timestamp()
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(time.Now().UTC()))
}

func TestEmit_NilEventSkipped(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	require.NoError(t, em.Emit(context.Background(), nil))
	assert.Zero(t, capture.count)
}
