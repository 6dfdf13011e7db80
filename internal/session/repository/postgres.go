package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"authcore/backend/internal/db"
	"authcore/backend/internal/device"
	"authcore/backend/internal/session/domain"
)

const sessionColumns = `id, account_id, renewal_credential_hash, user_agent_raw, network_origin,
	browser, os, platform, device_label, revoked, revocation_reason, created_at, last_used_at, revoked_at`

// PostgresRepository stores sessions in the sessions table.
type PostgresRepository struct {
	db   db.DBTX
	pool db.Pool // nil inside a lock scope
	now  func() time.Time
}

var (
	_ Repository    = (*PostgresRepository)(nil)
	_ AccountLocker = (*PostgresRepository)(nil)
)

// NewPostgresRepository returns a session repository that uses pool for persistence.
func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool, now: utcNow}
}

// WithClock replaces the time source used for touch and revoke timestamps.
func (r *PostgresRepository) WithClock(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

// Insert persists s. The session must have AccountID and RenewalCredentialHash set.
func (r *PostgresRepository) Insert(ctx context.Context, s *domain.Session) (string, error) {
	if s.ID == "" {
		s.ID = NewID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.AccountID, s.RenewalCredentialHash, s.Fingerprint.UserAgentRaw, s.Fingerprint.NetworkOrigin,
		s.Descriptor.Browser, s.Descriptor.OS, s.Descriptor.Platform, s.Descriptor.DeviceLabel,
		s.Revoked, nullableReason(s.RevocationReason), s.CreatedAt, s.LastUsedAt, s.RevokedAt)
	if err != nil {
		return "", oops.Code("SESSION_INSERT_FAILED").With("session_id", s.ID).Wrap(err)
	}
	return s.ID, nil
}

func (r *PostgresRepository) FindActiveByAccountAndFingerprint(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	return r.query(ctx, "SESSION_QUERY_FAILED",
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE account_id = $1 AND user_agent_raw = $2 AND network_origin = $3 AND NOT revoked
		 ORDER BY created_at ASC, id ASC`,
		accountID, fp.UserAgentRaw, fp.NetworkOrigin)
}

func (r *PostgresRepository) FindActiveByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	return r.query(ctx, "SESSION_QUERY_FAILED",
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE account_id = $1 AND NOT revoked
		 ORDER BY created_at ASC, id ASC`,
		accountID)
}

func (r *PostgresRepository) FindActiveByAccountAndCandidateCredential(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	return r.FindActiveByAccountAndFingerprint(ctx, accountID, fp)
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	return r.query(ctx, "SESSION_LIST_FAILED",
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC`,
		accountID)
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("session_id", id).Wrap(err)
	}
	return s, nil
}

// Revoke marks the session revoked. The first revocation's time and reason are kept.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, reason domain.RevocationReason) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked = TRUE, revoked_at = $2, revocation_reason = $3
		 WHERE id = $1 AND NOT revoked`,
		id, r.now(), string(reason))
	if err != nil {
		return false, oops.Code("SESSION_REVOKE_FAILED").With("session_id", id).With("reason", reason).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE account_id = $1 AND NOT revoked`, accountID).Scan(&n)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").With("account_id", accountID).Wrap(err)
	}
	return n, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, r.now())
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").With("session_id", id).Wrap(err)
	}
	return nil
}

// WithAccountLock runs fn in one transaction holding a transaction-scoped advisory lock
// on the account. Concurrent lock holders for the same account run one after another.
func (r *PostgresRepository) WithAccountLock(ctx context.Context, accountID string, fn func(ctx context.Context, repo Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, accountID); err != nil {
			return oops.Code("SESSION_LOCK_FAILED").With("account_id", accountID).Wrap(err)
		}
		return fn(ctx, &PostgresRepository{db: tx, now: r.now})
	})
}

func (r *PostgresRepository) query(ctx context.Context, code, sql string, args ...any) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.Code(code).Wrap(err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code(code).Wrap(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code(code).Wrap(err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s      domain.Session
		reason *string
	)
	err := row.Scan(&s.ID, &s.AccountID, &s.RenewalCredentialHash,
		&s.Fingerprint.UserAgentRaw, &s.Fingerprint.NetworkOrigin,
		&s.Descriptor.Browser, &s.Descriptor.OS, &s.Descriptor.Platform, &s.Descriptor.DeviceLabel,
		&s.Revoked, &reason, &s.CreatedAt, &s.LastUsedAt, &s.RevokedAt)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		s.RevocationReason = domain.RevocationReason(*reason)
	}
	return &s, nil
}

func nullableReason(r domain.RevocationReason) *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}
