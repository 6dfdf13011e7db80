package domain

import (
	"testing"
	"time"

	"authcore/backend/internal/device"
)

func TestSession_ViewOmitsHash(t *testing.T) {
	now := time.Now()
	fp, desc := device.Extract("curl/8.4.0", "127.0.0.1")
	s := &Session{
		ID:                    "01A",
		AccountID:             "acct-1",
		RenewalCredentialHash: "$argon2id$secret",
		Fingerprint:           fp,
		Descriptor:            desc,
		CreatedAt:             now,
		LastUsedAt:            now,
	}
	v := s.View()
	if v.ID != "01A" || v.Fingerprint != fp || v.Descriptor != desc || v.Revoked {
		t.Errorf("View = %+v", v)
	}
	if !s.IsActive() {
		t.Error("new session should be active")
	}
	s.Revoked = true
	if s.IsActive() || !s.View().Revoked {
		t.Error("revoked session reported active")
	}
}
