package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/backend/internal/telemetry"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewKafkaProducer_Unconfigured(t *testing.T) {
	assert.Nil(t, NewKafkaProducer(nil, "topic"))
	assert.Nil(t, NewKafkaProducer([]string{"localhost:9092"}, ""))

	var p *KafkaProducer
	assert.NoError(t, p.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSessionCreated, "a", "s")))
	assert.NoError(t, p.Close())
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaProducer(w, "session-events")
	ev := telemetry.NewEvent(telemetry.EventSessionRevoked, "acct-1", "01A")
	ev.Reason = "logout"

	require.NoError(t, p.Emit(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("acct-1"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "session_revoked", string(msg.Headers[0].Value))

	var decoded telemetry.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, telemetry.EventSessionRevoked, decoded.Type)
	assert.Equal(t, "logout", decoded.Reason)

	assert.NoError(t, p.Emit(context.Background(), nil))
	assert.Len(t, w.msgs, 1)
}

func TestKafkaProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newKafkaProducer(w, "session-events")
	err := p.Emit(context.Background(), telemetry.NewEvent(telemetry.EventSessionCreated, "a", "s"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}
