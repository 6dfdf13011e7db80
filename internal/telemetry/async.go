package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// AsyncEmitter wraps an emitter so Emit returns immediately. Each event is delivered in
// its own goroutine with context.Background and emitTimeout, so request cancellation does
// not abort delivery. Failures are logged.
type AsyncEmitter struct {
	next    EventEmitter
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncEmitter returns an AsyncEmitter delivering to next. A nil logger uses slog.Default.
func NewAsyncEmitter(next EventEmitter, logger *slog.Logger) *AsyncEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncEmitter{next: next, logger: logger, timeout: emitTimeout}
}

// Emit schedules delivery and returns nil. Nil events and a nil next emitter are ignored.
func (a *AsyncEmitter) Emit(_ context.Context, event *Event) error {
	if a == nil || a.next == nil || event == nil {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Emit(ctx, event); err != nil {
			a.logger.Warn("telemetry: async emit failed",
				"event_type", string(event.Type), "event_id", event.ID, "error", err)
		}
	}()
	return nil
}

// Drain waits for in-flight emits to finish or ctx to end, whichever is first.
func (a *AsyncEmitter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
