package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/backend/internal/device"
	"authcore/backend/internal/session/domain"
)

// fakeClock returns a fixed instant that tests advance by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	fpLaptop = device.Fingerprint{UserAgentRaw: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", NetworkOrigin: "198.51.100.4"}
	fpPhone  = device.Fingerprint{UserAgentRaw: "Mozilla/5.0 (iPhone) Mobile Safari", NetworkOrigin: "198.51.100.9"}
)

func newTestSession(accountID string, fp device.Fingerprint, hash string, at time.Time) *domain.Session {
	_, desc := device.Extract(fp.UserAgentRaw, fp.NetworkOrigin)
	return &domain.Session{
		AccountID:             accountID,
		RenewalCredentialHash: hash,
		Fingerprint:           fp,
		Descriptor:            desc,
		CreatedAt:             at,
		LastUsedAt:            at,
	}
}

// runLedgerContract checks the behavior every ledger implementation shares.
func runLedgerContract(t *testing.T, newRepo func(t *testing.T, clock *fakeClock) Repository) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		s := newTestSession("acct-1", fpLaptop, "h1", clock.Now())
		id, err := r.Insert(ctx, s)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "acct-1", got.AccountID)
		assert.Equal(t, "h1", got.RenewalCredentialHash)
		assert.Equal(t, fpLaptop, got.Fingerprint)
		assert.Equal(t, s.Descriptor, got.Descriptor)
		assert.True(t, got.IsActive())
		assert.True(t, got.CreatedAt.Equal(s.CreatedAt))
		assert.Nil(t, got.RevokedAt)

		missing, err := r.GetByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("active order is creation time then insertion", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		same := clock.Now()
		var ids []string
		for i, h := range []string{"a", "b", "c"} {
			fp := fpLaptop
			if i == 1 {
				fp = fpPhone
			}
			id, err := r.Insert(ctx, newTestSession("acct-1", fp, h, same))
			require.NoError(t, err)
			ids = append(ids, id)
		}
		earlier := newTestSession("acct-1", fpPhone, "z", same.Add(-time.Minute))
		earlierID, err := r.Insert(ctx, earlier)
		require.NoError(t, err)

		active, err := r.FindActiveByAccount(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, []string{earlierID, ids[0], ids[1], ids[2]}, sessionIDs(active))

		all, err := r.ListByAccount(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, []string{ids[2], ids[1], ids[0], earlierID}, sessionIDs(all))
	})

	t.Run("fingerprint filter is exact", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		laptopID, _ := r.Insert(ctx, newTestSession("acct-1", fpLaptop, "h1", clock.Now()))
		_, _ = r.Insert(ctx, newTestSession("acct-1", fpPhone, "h2", clock.Now()))
		_, _ = r.Insert(ctx, newTestSession("acct-2", fpLaptop, "h3", clock.Now()))
		moved := fpLaptop
		moved.NetworkOrigin = "198.51.100.5"
		_, _ = r.Insert(ctx, newTestSession("acct-1", moved, "h4", clock.Now()))

		got, err := r.FindActiveByAccountAndFingerprint(ctx, "acct-1", fpLaptop)
		require.NoError(t, err)
		assert.Equal(t, []string{laptopID}, sessionIDs(got))

		cands, err := r.FindActiveByAccountAndCandidateCredential(ctx, "acct-1", fpLaptop)
		require.NoError(t, err)
		assert.Equal(t, []string{laptopID}, sessionIDs(cands))
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		id, _ := r.Insert(ctx, newTestSession("acct-1", fpLaptop, "h1", clock.Now()))
		_, _ = r.Insert(ctx, newTestSession("acct-1", fpPhone, "h2", clock.Now()))

		clock.Advance(time.Minute)
		changed, err := r.Revoke(ctx, id, domain.ReasonLogout)
		require.NoError(t, err)
		assert.True(t, changed)
		first, _ := r.GetByID(ctx, id)
		require.NotNil(t, first.RevokedAt)

		clock.Advance(time.Minute)
		changed, err = r.Revoke(ctx, id, domain.ReasonCap)
		require.NoError(t, err)
		assert.False(t, changed, "second revoke reports no change")
		second, _ := r.GetByID(ctx, id)
		assert.True(t, second.Revoked)
		assert.Equal(t, domain.ReasonLogout, second.RevocationReason)
		assert.True(t, first.RevokedAt.Equal(*second.RevokedAt))

		n, err := r.CountActive(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		changed, err = r.Revoke(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", domain.ReasonManual)
		require.NoError(t, err)
		assert.False(t, changed)

		active, _ := r.FindActiveByAccountAndFingerprint(ctx, "acct-1", fpLaptop)
		assert.Empty(t, active)
		all, _ := r.ListByAccount(ctx, "acct-1")
		assert.Len(t, all, 2, "revoked sessions are retained")
	})

	t.Run("touch", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		start := clock.Now()
		id, _ := r.Insert(ctx, newTestSession("acct-1", fpLaptop, "h1", start))
		clock.Advance(time.Hour)
		require.NoError(t, r.Touch(ctx, id))
		got, _ := r.GetByID(ctx, id)
		assert.True(t, got.LastUsedAt.Equal(start.Add(time.Hour)))
		assert.True(t, got.CreatedAt.Equal(start))

		require.NoError(t, r.Touch(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"))
		ghost, _ := r.GetByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		assert.Nil(t, ghost)
	})

	t.Run("accounts are isolated", func(t *testing.T) {
		clock := newFakeClock()
		r := newRepo(t, clock)
		_, _ = r.Insert(ctx, newTestSession("acct-1", fpLaptop, "h1", clock.Now()))
		_, _ = r.Insert(ctx, newTestSession("acct-2", fpLaptop, "h2", clock.Now()))
		n, _ := r.CountActive(ctx, "acct-2")
		assert.Equal(t, 1, n)
		list, _ := r.ListByAccount(ctx, "acct-3")
		assert.Empty(t, list)
	})
}

func sessionIDs(list []*domain.Session) []string {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}
