package domain

import "time"

// Entry is one persisted session lifecycle event.
type Entry struct {
	ID            string
	EventType     string
	AccountID     string
	SessionID     string
	Reason        string
	UserAgent     string
	NetworkOrigin string
	CreatedAt     time.Time
}
