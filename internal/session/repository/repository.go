package repository

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"authcore/backend/internal/device"
	"authcore/backend/internal/session/domain"
)

// Repository is the session ledger. It stores sessions and answers queries about them;
// it applies no policy. Active lists are ordered oldest first (created_at, then id).
type Repository interface {
	// Insert stores s and returns its id. An empty s.ID is assigned a new ULID.
	Insert(ctx context.Context, s *domain.Session) (string, error)
	FindActiveByAccountAndFingerprint(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error)
	FindActiveByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
	// FindActiveByAccountAndCandidateCredential returns the sessions whose hash the caller
	// must verify a presented refresh credential against. Hashes are salted, so the
	// candidates are the account's active sessions on the presenting device.
	FindActiveByAccountAndCandidateCredential(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error)
	// ListByAccount returns every session of the account, revoked included, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
	// GetByID returns the session, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Revoke marks the session revoked and reports whether this call changed it.
	// Revoking a revoked or missing session is a no-op that reports false.
	Revoke(ctx context.Context, id string, reason domain.RevocationReason) (bool, error)
	CountActive(ctx context.Context, accountID string) (int, error)
	// Touch sets last_used_at to now.
	Touch(ctx context.Context, id string) error
}

// AccountLocker is implemented by ledgers that can serialize writers per account.
// fn receives a Repository bound to the lock scope and must use it for every read and
// write that has to be serialized.
type AccountLocker interface {
	WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, r Repository) error) error
}

// NewID returns a new session id. ULIDs sort in creation order within the process.
func NewID() string {
	return ulid.Make().String()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
