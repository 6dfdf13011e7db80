// Package producer publishes session events to a message broker.
package producer

import (
	"authcore/backend/internal/telemetry"
)

// Producer is an EventEmitter backed by a broker connection that must be closed.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
