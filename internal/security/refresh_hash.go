package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Default argon2id parameters for renewal-credential hashes. Cheaper than password
// parameters: inputs are high-entropy tokens and several hashes may be checked per refresh.
const (
	credentialHashTime    = 1
	credentialHashMemory  = 16 * 1024 // KiB
	credentialHashThreads = 1
	credentialHashSaltLen = 16
	credentialHashKeyLen  = 32
)

// CredentialHasher hashes renewal credentials with argon2id and a fresh random salt per call.
// Stored hashes cannot be looked up by value; Verify must be run against each candidate.
type CredentialHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// NewCredentialHasher returns a CredentialHasher with the default parameters.
func NewCredentialHasher() *CredentialHasher {
	return &CredentialHasher{
		Time:    credentialHashTime,
		Memory:  credentialHashMemory,
		Threads: credentialHashThreads,
		SaltLen: credentialHashSaltLen,
		KeyLen:  credentialHashKeyLen,
	}
}

// Hash returns a PHC-encoded argon2id hash of credential.
func (h *CredentialHasher) Hash(credential string) (string, error) {
	if credential == "" {
		return "", oops.Code("CREDENTIAL_HASH_EMPTY").Errorf("credential cannot be empty")
	}
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("CREDENTIAL_SALT_FAILED").Wrap(err)
	}
	sum := argon2.IDKey([]byte(credential), salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Memory,
		h.Time,
		h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether credential matches the encoded hash, using the parameters stored
// in the hash. Returns an error only when encoded is not a valid argon2id hash.
func (h *CredentialHasher) Verify(credential, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Errorf("invalid hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Errorf("unsupported argon2 version %d", version)
	}
	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Errorf("threads value %d out of range", threads)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Wrap(err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Wrap(err)
	}
	if len(want) == 0 || len(want) > 1024 {
		return false, oops.Code("CREDENTIAL_HASH_INVALID").Errorf("invalid key length %d", len(want))
	}
	got := argon2.IDKey([]byte(credential), salt, iterations, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
