package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenProvider_MintVerifyRoundTrip(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, kind := range []Kind{KindAccess, KindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			tok, err := p.Mint("acct-1", "alice@example.com", kind, 15*time.Minute)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}
			claims, err := p.Verify(tok)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.Subject != "acct-1" || claims.Email != "alice@example.com" || claims.Kind != kind {
				t.Errorf("claims = %+v, want subject=acct-1 email=alice@example.com kind=%s", claims, kind)
			}
			if claims.ID == "" {
				t.Error("claims.ID is empty")
			}
			if !claims.ExpiresAt.After(claims.IssuedAt) {
				t.Errorf("ExpiresAt %v not after IssuedAt %v", claims.ExpiresAt, claims.IssuedAt)
			}
		})
	}
}

func TestTokenProvider_MintedTokensDiffer(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	a, _ := p.Mint("acct-1", "a@example.com", KindRefresh, time.Hour)
	b, _ := p.Mint("acct-1", "a@example.com", KindRefresh, time.Hour)
	if a == b {
		t.Error("two refresh tokens minted back to back are identical")
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.WithClock(func() time.Time { return t0 })
	tok, err := p.Mint("acct-1", "a@example.com", KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	p.WithClock(func() time.Time { return t0.Add(2 * time.Minute) })
	claims, err := p.Verify(tok)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify expired: want ErrExpired, got %v", err)
	}
	if claims == nil || claims.Subject != "acct-1" {
		t.Errorf("expired Verify should return claims with subject, got %+v", claims)
	}
}

func TestTokenProvider_TamperedPayload(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	victim, _ := p.Mint("acct-1", "a@example.com", KindRefresh, time.Hour)
	other, _ := p.Mint("acct-2", "b@example.com", KindRefresh, time.Hour)
	vp := strings.Split(victim, ".")
	op := strings.Split(other, ".")
	forged := vp[0] + "." + op[1] + "." + vp[2]
	if _, err := p.Verify(forged); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify forged: want ErrInvalidSignature, got %v", err)
	}
}

func TestTokenProvider_ForeignIssuerOrKey(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hmac := NewHMACTokenProvider([]byte("other-secret"), "test-issuer", "test-audience")
	tok, err := hmac.Mint("acct-1", "a@example.com", KindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Mint HMAC: %v", err)
	}
	if _, err := p.Verify(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify HS256 token with RS256 provider: want ErrInvalidSignature, got %v", err)
	}

	otherIssuer, err := NewCodecFromPEM(testPrivateKeyPEM, testPublicKeyPEM, "someone-else", "test-audience")
	if err != nil {
		t.Fatalf("NewCodecFromPEM: %v", err)
	}
	tok, _ = otherIssuer.Mint("acct-1", "a@example.com", KindAccess, time.Hour)
	if _, err := p.Verify(tok); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify token from other issuer: want ErrInvalidSignature, got %v", err)
	}
}

func TestTokenProvider_Malformed(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	for _, tok := range []string{"", "not-a-token", "a.b.c", "a.b"} {
		if _, err := p.Verify(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q): want ErrMalformedToken, got %v", tok, err)
		}
	}
}

func TestTokenProvider_MintRejectsBadInput(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	cases := []struct {
		name    string
		subject string
		kind    Kind
		ttl     time.Duration
	}{
		{"empty subject", "", KindAccess, time.Minute},
		{"unknown kind", "acct-1", Kind("session"), time.Minute},
		{"zero ttl", "acct-1", KindAccess, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Mint(tc.subject, "", tc.kind, tc.ttl); !errors.Is(err, ErrInvalidClaims) {
				t.Errorf("Mint: want ErrInvalidClaims, got %v", err)
			}
		})
	}
}

func TestTokenProvider_HMACRoundTrip(t *testing.T) {
	p := NewHMACTokenProvider([]byte("s3cret"), "iss", "aud")
	if p.Alg() != "HS256" {
		t.Errorf("Alg = %q, want HS256", p.Alg())
	}
	tok, err := p.Mint("acct-9", "z@example.com", KindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims, err := p.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "acct-9" || claims.Kind != KindRefresh {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenProvider_NoKey(t *testing.T) {
	p := NewTokenProvider(nil, nil, "iss", "aud")
	if _, err := p.Mint("acct-1", "", KindAccess, time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Mint without key: want ErrInvalidKey, got %v", err)
	}
	if _, err := p.Verify("a.b.c"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify without key: want ErrInvalidKey, got %v", err)
	}
}
