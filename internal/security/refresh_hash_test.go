package security

import (
	"strings"
	"testing"
)

func TestCredentialHasher_HashAndVerify(t *testing.T) {
	h := NewCredentialHasher()
	token := strings.Repeat("header.", 20) + "payload.signature"
	encoded, err := h.Hash(token)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Errorf("encoded hash %q lacks argon2id prefix", encoded)
	}
	ok, err := h.Verify(token, encoded)
	if err != nil || !ok {
		t.Fatalf("Verify same token: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(token+"x", encoded)
	if err != nil || ok {
		t.Errorf("Verify different token: ok=%v err=%v, want false nil", ok, err)
	}
}

func TestCredentialHasher_SaltedPerCall(t *testing.T) {
	h := NewCredentialHasher()
	a, _ := h.Hash("same-token")
	b, _ := h.Hash("same-token")
	if a == b {
		t.Error("two hashes of the same token are identical; salt not applied")
	}
}

func TestCredentialHasher_LongSharedPrefix(t *testing.T) {
	// Tokens for one account share a long prefix; only the tail differs.
	h := NewCredentialHasher()
	prefix := strings.Repeat("a", 200)
	encoded, _ := h.Hash(prefix + "1")
	ok, err := h.Verify(prefix+"2", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("tokens differing only after byte 200 verified as equal")
	}
}

func TestCredentialHasher_InvalidEncoded(t *testing.T) {
	h := NewCredentialHasher()
	for _, enc := range []string{
		"",
		"plain",
		"$2a$10$abcdefghijklmnopqrstuu",
		"$argon2id$v=19$m=x$salt$hash",
		"$argon2id$v=18$m=16384,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=16384,t=1,p=0$c2FsdA$aGFzaA",
	} {
		if _, err := h.Verify("token", enc); err == nil {
			t.Errorf("Verify(%q): want error", enc)
		}
	}
}

func TestCredentialHasher_EmptyCredential(t *testing.T) {
	if _, err := NewCredentialHasher().Hash(""); err == nil {
		t.Error("Hash empty: want error")
	}
}
