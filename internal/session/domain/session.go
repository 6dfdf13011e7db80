package domain

import (
	"time"

	"authcore/backend/internal/device"
)

// RevocationReason records why a session stopped being active.
type RevocationReason string

const (
	ReasonLogout      RevocationReason = "logout"
	ReasonRotation    RevocationReason = "rotation"
	ReasonFingerprint RevocationReason = "fingerprint"
	ReasonCap         RevocationReason = "cap"
	ReasonManual      RevocationReason = "manual"
)

// Session binds the hash of one issued refresh credential to an account and a device.
// Revoked only ever goes from false to true.
type Session struct {
	ID                    string
	AccountID             string
	RenewalCredentialHash string
	Fingerprint           device.Fingerprint
	Descriptor            device.Descriptor
	Revoked               bool
	RevocationReason      RevocationReason // empty while active
	CreatedAt             time.Time
	LastUsedAt            time.Time
	RevokedAt             *time.Time // nil when not revoked
}

// IsActive reports whether the session has not been revoked.
func (s *Session) IsActive() bool {
	return !s.Revoked
}

// View is the listing projection of a session. It never carries the credential hash.
type View struct {
	ID               string
	Fingerprint      device.Fingerprint
	Descriptor       device.Descriptor
	Revoked          bool
	RevocationReason RevocationReason
	CreatedAt        time.Time
	LastUsedAt       time.Time
	RevokedAt        *time.Time
}

// View returns the listing projection of s.
func (s *Session) View() View {
	return View{
		ID:               s.ID,
		Fingerprint:      s.Fingerprint,
		Descriptor:       s.Descriptor,
		Revoked:          s.Revoked,
		RevocationReason: s.RevocationReason,
		CreatedAt:        s.CreatedAt,
		LastUsedAt:       s.LastUsedAt,
		RevokedAt:        s.RevokedAt,
	}
}
