package service

import (
	"context"

	"authcore/backend/internal/session/domain"
	sessionrepo "authcore/backend/internal/session/repository"
)

// Reconcile brings the account's active sessions down to MaxActiveSessions - willCreate,
// revoking the oldest by creation time first. It returns how many sessions it revoked.
// Running it again with the same argument revokes nothing.
func (m *Manager) Reconcile(ctx context.Context, accountID string, willCreate int) (evicted int, err error) {
	ctx, span := tracer.Start(ctx, "session.Reconcile")
	defer func() { endSpan(span, err) }()

	var revoked []revocation
	err = m.withLedger(ctx, accountID, func(ctx context.Context, ledger sessionrepo.Repository) error {
		var err error
		revoked, err = m.reconcile(ctx, ledger, accountID, willCreate)
		return err
	})
	if err != nil {
		return 0, err
	}
	m.recordRevocations(ctx, accountID, revoked)
	return len(revoked), nil
}

func (m *Manager) reconcile(ctx context.Context, ledger sessionrepo.Repository, accountID string, willCreate int) ([]revocation, error) {
	if willCreate < 0 {
		willCreate = 0
	}
	target := m.cfg.MaxActiveSessions - willCreate
	if target < 0 {
		target = 0
	}
	active, err := ledger.CountActive(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if active <= target {
		return nil, nil
	}
	oldest, err := ledger.FindActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	excess := len(oldest) - target
	if excess <= 0 {
		return nil, nil
	}
	out := make([]revocation, 0, excess)
	for _, s := range oldest[:excess] {
		changed, err := ledger.Revoke(ctx, s.ID, domain.ReasonCap)
		if err != nil {
			return out, err
		}
		if changed {
			out = append(out, revocation{id: s.ID, reason: domain.ReasonCap})
		}
	}
	return out, nil
}
