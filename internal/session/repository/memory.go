package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"authcore/backend/internal/device"
	"authcore/backend/internal/session/domain"
)

// MemoryRepository is an in-process ledger for tests and SESSION_STORE=memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var (
	_ Repository    = (*MemoryRepository)(nil)
	_ AccountLocker = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*domain.Session),
		locks:    make(map[string]*sync.Mutex),
		now:      utcNow,
	}
}

// WithClock replaces the time source used for touch and revoke timestamps.
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

func (r *MemoryRepository) Insert(_ context.Context, s *domain.Session) (string, error) {
	if s.ID == "" {
		s.ID = NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = clone(s)
	return s.ID, nil
}

func (r *MemoryRepository) FindActiveByAccountAndFingerprint(_ context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	return r.filter(func(s *domain.Session) bool {
		return s.AccountID == accountID && s.IsActive() && s.Fingerprint.Equal(fp)
	}, oldestFirst), nil
}

func (r *MemoryRepository) FindActiveByAccount(_ context.Context, accountID string) ([]*domain.Session, error) {
	return r.filter(func(s *domain.Session) bool {
		return s.AccountID == accountID && s.IsActive()
	}, oldestFirst), nil
}

func (r *MemoryRepository) FindActiveByAccountAndCandidateCredential(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	return r.FindActiveByAccountAndFingerprint(ctx, accountID, fp)
}

func (r *MemoryRepository) ListByAccount(_ context.Context, accountID string) ([]*domain.Session, error) {
	return r.filter(func(s *domain.Session) bool {
		return s.AccountID == accountID
	}, func(a, b *domain.Session) bool { return oldestFirst(b, a) }), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return clone(s), nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string, reason domain.RevocationReason) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Revoked {
		return false, nil
	}
	at := r.now()
	s.Revoked = true
	s.RevokedAt = &at
	s.RevocationReason = reason
	return true, nil
}

func (r *MemoryRepository) CountActive(_ context.Context, accountID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.AccountID == accountID && s.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastUsedAt = r.now()
	}
	return nil
}

// WithAccountLock serializes fn against other lock holders for the same account.
func (r *MemoryRepository) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, repo Repository) error) error {
	r.locksMu.Lock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx, r)
}

func (r *MemoryRepository) filter(keep func(*domain.Session) bool, less func(a, b *domain.Session) bool) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func oldestFirst(a, b *domain.Session) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func clone(s *domain.Session) *domain.Session {
	cp := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}
