// Package service implements the session manager: registration, login, credential
// rotation, logout and per-account session administration.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountdomain "authcore/backend/internal/account/domain"
	accountrepo "authcore/backend/internal/account/repository"
	"authcore/backend/internal/device"
	"authcore/backend/internal/metrics"
	"authcore/backend/internal/security"
	"authcore/backend/internal/session/domain"
	sessionrepo "authcore/backend/internal/session/repository"
	"authcore/backend/internal/telemetry"
)

const (
	// DefaultMaxActiveSessions is the per-account cap used when Config leaves it unset.
	DefaultMaxActiveSessions = 5
	DefaultAccessTTL         = 15 * time.Minute
	DefaultRefreshTTL        = 7 * 24 * time.Hour

	maxPasswordBytes = 72
)

var tracer = otel.Tracer("authcore/session")

// PasswordHasher is the one-way password primitive.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
	CompareDummy(password []byte) error
}

// CredentialHasher hashes renewal credentials for storage and checks presented ones.
type CredentialHasher interface {
	Hash(credential string) (string, error)
	Verify(credential, encoded string) (bool, error)
}

// Metrics receives flow counters. *metrics.Metrics implements it.
type Metrics interface {
	SessionCreated(flow string)
	SessionRevoked(reason string)
	AuthFailure(flow, reason string)
}

// Deps are the collaborators of a Manager. Accounts, Ledger, Codec, Passwords and
// Credentials are required; the rest default to no-ops.
type Deps struct {
	Accounts    accountrepo.Repository
	Ledger      sessionrepo.Repository
	Codec       security.Codec
	Passwords   PasswordHasher
	Credentials CredentialHasher
	Events      telemetry.EventEmitter
	Metrics     Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Config holds the session policy knobs.
type Config struct {
	// MaxActiveSessions is the per-account active session cap.
	MaxActiveSessions int
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	Account          accountdomain.Summary
}

// Manager orchestrates credentials, fingerprints and the session ledger.
type Manager struct {
	accounts    accountrepo.Repository
	ledger      sessionrepo.Repository
	codec       security.Codec
	passwords   PasswordHasher
	credentials CredentialHasher
	events      telemetry.EventEmitter
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
	cfg         Config
}

// NewManager returns a Manager. Zero Config fields take the package defaults.
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.MaxActiveSessions <= 0 {
		cfg.MaxActiveSessions = DefaultMaxActiveSessions
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	m := &Manager{
		accounts:    deps.Accounts,
		ledger:      deps.Ledger,
		codec:       deps.Codec,
		passwords:   deps.Passwords,
		credentials: deps.Credentials,
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         deps.Clock,
		cfg:         cfg,
	}
	if m.events == nil {
		m.events = telemetry.Noop{}
	}
	if m.metrics == nil {
		m.metrics = (*metrics.Metrics)(nil)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Register creates an account and its first session.
func (m *Manager) Register(ctx context.Context, email, password, name string, md device.RequestMetadata) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "session.Register")
	defer func() { endSpan(span, err) }()

	email = accountdomain.NormalizeEmail(email)
	if err := validateRegistration(email, password); err != nil {
		return nil, err
	}
	existing, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.metrics.AuthFailure(metrics.FlowRegister, "account_exists")
		return nil, ErrAccountExists
	}
	hashed, err := m.passwords.Hash([]byte(password))
	if err != nil {
		return nil, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	now := m.now()
	acct := &accountdomain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := acct.Validate(); err != nil {
		return nil, oops.Code("ACCOUNT_INVALID").Wrap(err)
	}
	if err := m.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, accountrepo.ErrEmailTaken) {
			m.metrics.AuthFailure(metrics.FlowRegister, "account_exists")
			return nil, ErrAccountExists
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))
	m.logger.InfoContext(ctx, "account registered", "account_id", acct.ID)

	return m.issue(ctx, metrics.FlowRegister, acct, md)
}

// Login authenticates by email and password and opens a session for the device.
func (m *Manager) Login(ctx context.Context, email, password string, md device.RequestMetadata) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "session.Login")
	defer func() { endSpan(span, err) }()

	email = accountdomain.NormalizeEmail(email)
	acct, err := m.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		_ = m.passwords.CompareDummy([]byte(password))
		return nil, m.loginFailed(ctx, "", md)
	}
	if err := m.passwords.Compare(acct.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, m.loginFailed(ctx, acct.ID, md)
		}
		return nil, oops.Code("PASSWORD_COMPARE_FAILED").With("account_id", acct.ID).Wrap(err)
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))
	return m.issue(ctx, metrics.FlowLogin, acct, md)
}

func (m *Manager) loginFailed(ctx context.Context, accountID string, md device.RequestMetadata) error {
	m.metrics.AuthFailure(metrics.FlowLogin, "invalid_credentials")
	m.logger.WarnContext(ctx, "login rejected", "account_id", accountID, "network_origin", md.NetworkOrigin)
	ev := telemetry.NewEvent(telemetry.EventLoginFailed, accountID, "")
	ev.UserAgent, ev.NetworkOrigin = md.UserAgent, md.NetworkOrigin
	m.emit(ctx, ev)
	return ErrInvalidCredentials
}

// issue mints a credential pair for acct and records the session: sessions already open on
// the same device are revoked, the cap is reconciled, then the new session is inserted.
func (m *Manager) issue(ctx context.Context, flow string, acct *accountdomain.Account, md device.RequestMetadata) (*AuthResult, error) {
	fp, desc := md.Extract()
	pair, err := m.mint(acct)
	if err != nil {
		return nil, err
	}
	hash, err := m.credentials.Hash(pair.RefreshToken)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_HASH_FAILED").With("account_id", acct.ID).Wrap(err)
	}

	var revoked []revocation
	err = m.withLedger(ctx, acct.ID, func(ctx context.Context, ledger sessionrepo.Repository) error {
		r, err := m.evictFingerprint(ctx, ledger, acct.ID, fp)
		if err != nil {
			return err
		}
		revoked = append(revoked, r...)
		if r, err = m.reconcile(ctx, ledger, acct.ID, 1); err != nil {
			return err
		}
		revoked = append(revoked, r...)
		pair.SessionID, err = m.insert(ctx, ledger, acct.ID, hash, fp, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.recordRevocations(ctx, acct.ID, revoked)
	m.recordCreated(ctx, flow, acct.ID, pair.SessionID, md)
	pair.Account = acct.Summary()
	return pair, nil
}

// Refresh rotates a renewal credential: the session it belongs to is revoked and a new
// session with a new credential pair replaces it.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, md device.RequestMetadata) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	claims, err := m.codec.Verify(refreshToken)
	if err != nil || claims.Kind != security.KindRefresh {
		return nil, m.refreshRejected(ctx, claims, md, "invalid_token", ErrInvalidToken)
	}
	acct, err := m.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, m.refreshRejected(ctx, claims, md, "account_not_found", ErrAccountNotFound)
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))

	fp, desc := md.Extract()
	pair, err := m.mint(acct)
	if err != nil {
		return nil, err
	}
	hash, err := m.credentials.Hash(pair.RefreshToken)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_HASH_FAILED").With("account_id", acct.ID).Wrap(err)
	}

	var (
		rotated string
		revoked []revocation
	)
	err = m.withLedger(ctx, acct.ID, func(ctx context.Context, ledger sessionrepo.Repository) error {
		match, err := m.locate(ctx, ledger, acct.ID, fp, refreshToken)
		if err != nil {
			return err
		}
		if match == nil {
			return ErrSessionNotFoundOrRevoked
		}
		changed, err := ledger.Revoke(ctx, match.ID, domain.ReasonRotation)
		if err != nil {
			return err
		}
		if !changed {
			// Another refresh rotated this session after locate read it.
			return ErrSessionNotFoundOrRevoked
		}
		rotated = match.ID
		if revoked, err = m.reconcile(ctx, ledger, acct.ID, 1); err != nil {
			return err
		}
		pair.SessionID, err = m.insert(ctx, ledger, acct.ID, hash, fp, desc)
		return err
	})
	if errors.Is(err, ErrSessionNotFoundOrRevoked) {
		return nil, m.refreshRejected(ctx, claims, md, "session_not_found", err)
	}
	if err != nil {
		return nil, err
	}

	m.metrics.SessionRevoked(string(domain.ReasonRotation))
	ev := telemetry.NewEvent(telemetry.EventSessionRotated, acct.ID, rotated)
	ev.Reason = string(domain.ReasonRotation)
	m.emit(ctx, ev)
	m.recordRevocations(ctx, acct.ID, revoked)
	m.recordCreated(ctx, metrics.FlowRefresh, acct.ID, pair.SessionID, md)
	pair.Account = acct.Summary()
	return pair, nil
}

func (m *Manager) refreshRejected(ctx context.Context, claims *security.Claims, md device.RequestMetadata, reason string, err error) error {
	m.metrics.AuthFailure(metrics.FlowRefresh, reason)
	var accountID string
	if claims != nil {
		accountID = claims.Subject
	}
	m.logger.WarnContext(ctx, "refresh rejected", "account_id", accountID, "reason", reason)
	ev := telemetry.NewEvent(telemetry.EventRefreshRejected, accountID, "")
	ev.Reason = reason
	ev.UserAgent, ev.NetworkOrigin = md.UserAgent, md.NetworkOrigin
	m.emit(ctx, ev)
	return err
}

// Logout revokes the session of a renewal credential. An expired credential, or one whose
// session cannot be found, revokes every active session of the subject on this device.
// Only a credential that cannot be trusted at all fails, with ErrInvalidToken.
func (m *Manager) Logout(ctx context.Context, refreshToken string, md device.RequestMetadata) (err error) {
	ctx, span := tracer.Start(ctx, "session.Logout")
	defer func() { endSpan(span, err) }()

	claims, err := m.codec.Verify(refreshToken)
	stale := errors.Is(err, security.ErrExpired) && claims != nil
	if (err != nil && !stale) || claims.Kind != security.KindRefresh {
		m.metrics.AuthFailure(metrics.FlowLogout, "invalid_token")
		return ErrInvalidToken
	}
	accountID := claims.Subject
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Bool("credential.expired", stale))
	fp, _ := md.Extract()

	var revoked []revocation
	err = m.withLedger(ctx, accountID, func(ctx context.Context, ledger sessionrepo.Repository) error {
		if !stale {
			match, err := m.locate(ctx, ledger, accountID, fp, refreshToken)
			if err != nil {
				return err
			}
			if match != nil {
				changed, err := ledger.Revoke(ctx, match.ID, domain.ReasonLogout)
				if err != nil {
					return err
				}
				if changed {
					revoked = append(revoked, revocation{id: match.ID, reason: domain.ReasonLogout})
				}
				return nil
			}
		}
		active, err := ledger.FindActiveByAccountAndFingerprint(ctx, accountID, fp)
		if err != nil {
			return err
		}
		for _, s := range active {
			changed, err := ledger.Revoke(ctx, s.ID, domain.ReasonLogout)
			if err != nil {
				return err
			}
			if changed {
				revoked = append(revoked, revocation{id: s.ID, reason: domain.ReasonLogout})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.recordRevocations(ctx, accountID, revoked)
	return nil
}

// ListSessions returns every session of the account, revoked included, newest first.
func (m *Manager) ListSessions(ctx context.Context, accountID string) (_ []domain.View, err error) {
	ctx, span := tracer.Start(ctx, "session.ListSessions", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() { endSpan(span, err) }()

	sessions, err := m.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	return views, nil
}

// RevokeSession revokes one session of the account. A session id that does not belong to
// the account yields ErrNotFound. Revoking a revoked session succeeds without change.
func (m *Manager) RevokeSession(ctx context.Context, accountID, sessionID string) (err error) {
	ctx, span := tracer.Start(ctx, "session.RevokeSession", trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("session.id", sessionID),
	))
	defer func() { endSpan(span, err) }()

	s, err := m.ledger.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || s.AccountID != accountID {
		return ErrNotFound
	}
	if !s.IsActive() {
		return nil
	}
	changed, err := m.ledger.Revoke(ctx, s.ID, domain.ReasonManual)
	if err != nil || !changed {
		return err
	}
	m.recordRevocations(ctx, accountID, []revocation{{id: s.ID, reason: domain.ReasonManual}})
	return nil
}

// ValidateAccessCredential returns the account id an access credential was minted for.
func (m *Manager) ValidateAccessCredential(ctx context.Context, accessToken string) (string, error) {
	claims, err := m.codec.Verify(accessToken)
	if err != nil || claims.Kind != security.KindAccess {
		m.metrics.AuthFailure(metrics.FlowValidate, "invalid_token")
		return "", ErrInvalidToken
	}
	acct, err := m.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if acct == nil {
		m.metrics.AuthFailure(metrics.FlowValidate, "account_not_found")
		return "", ErrAccountNotFound
	}
	return acct.ID, nil
}

// Profile returns the account summary.
func (m *Manager) Profile(ctx context.Context, accountID string) (*accountdomain.Summary, error) {
	acct, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	s := acct.Summary()
	return &s, nil
}

func (m *Manager) mint(acct *accountdomain.Account) (*AuthResult, error) {
	now := m.now()
	access, err := m.codec.Mint(acct.ID, acct.Email, security.KindAccess, m.cfg.AccessTTL)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_MINT_FAILED").With("kind", "access").Wrap(err)
	}
	refresh, err := m.codec.Mint(acct.ID, acct.Email, security.KindRefresh, m.cfg.RefreshTTL)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_MINT_FAILED").With("kind", "refresh").Wrap(err)
	}
	return &AuthResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(m.cfg.AccessTTL),
		RefreshExpiresAt: now.Add(m.cfg.RefreshTTL),
	}, nil
}

// locate returns the active session on fp whose stored hash matches token, or nil.
func (m *Manager) locate(ctx context.Context, ledger sessionrepo.Repository, accountID string, fp device.Fingerprint, token string) (*domain.Session, error) {
	candidates, err := ledger.FindActiveByAccountAndCandidateCredential(ctx, accountID, fp)
	if err != nil {
		return nil, err
	}
	for _, s := range candidates {
		ok, err := m.credentials.Verify(token, s.RenewalCredentialHash)
		if err != nil {
			m.logger.WarnContext(ctx, "unreadable credential hash", "session_id", s.ID, "error", err)
			continue
		}
		if ok {
			return s, nil
		}
	}
	return nil, nil
}

func (m *Manager) evictFingerprint(ctx context.Context, ledger sessionrepo.Repository, accountID string, fp device.Fingerprint) ([]revocation, error) {
	same, err := ledger.FindActiveByAccountAndFingerprint(ctx, accountID, fp)
	if err != nil {
		return nil, err
	}
	out := make([]revocation, 0, len(same))
	for _, s := range same {
		changed, err := ledger.Revoke(ctx, s.ID, domain.ReasonFingerprint)
		if err != nil {
			return out, err
		}
		if changed {
			out = append(out, revocation{id: s.ID, reason: domain.ReasonFingerprint})
		}
	}
	return out, nil
}

func (m *Manager) insert(ctx context.Context, ledger sessionrepo.Repository, accountID, hash string, fp device.Fingerprint, desc device.Descriptor) (string, error) {
	now := m.now()
	return ledger.Insert(ctx, &domain.Session{
		AccountID:             accountID,
		RenewalCredentialHash: hash,
		Fingerprint:           fp,
		Descriptor:            desc,
		CreatedAt:             now,
		LastUsedAt:            now,
	})
}

// withLedger runs fn under the ledger's per-account lock when it has one.
func (m *Manager) withLedger(ctx context.Context, accountID string, fn func(context.Context, sessionrepo.Repository) error) error {
	if locker, ok := m.ledger.(sessionrepo.AccountLocker); ok {
		return locker.WithAccountLock(ctx, accountID, fn)
	}
	return fn(ctx, m.ledger)
}

type revocation struct {
	id     string
	reason domain.RevocationReason
}

func (m *Manager) recordRevocations(ctx context.Context, accountID string, revoked []revocation) {
	for _, r := range revoked {
		m.metrics.SessionRevoked(string(r.reason))
		t := telemetry.EventSessionRevoked
		if r.reason == domain.ReasonCap || r.reason == domain.ReasonFingerprint {
			t = telemetry.EventSessionEvicted
			m.logger.InfoContext(ctx, "session evicted", "account_id", accountID, "session_id", r.id, "reason", r.reason)
		}
		ev := telemetry.NewEvent(t, accountID, r.id)
		ev.Reason = string(r.reason)
		m.emit(ctx, ev)
	}
}

func (m *Manager) recordCreated(ctx context.Context, flow, accountID, sessionID string, md device.RequestMetadata) {
	m.metrics.SessionCreated(flow)
	ev := telemetry.NewEvent(telemetry.EventSessionCreated, accountID, sessionID)
	ev.Reason = flow
	ev.UserAgent, ev.NetworkOrigin = md.UserAgent, md.NetworkOrigin
	m.emit(ctx, ev)
}

func (m *Manager) emit(ctx context.Context, ev *telemetry.Event) {
	if err := m.events.Emit(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "session event not emitted", "event_type", ev.Type, "error", err)
	}
}

func validateRegistration(email, password string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return oops.Code("INVALID_EMAIL").Wrapf(ErrInvalidInput, "email is not valid")
	}
	if password == "" || len(password) > maxPasswordBytes {
		return oops.Code("INVALID_PASSWORD").Wrapf(ErrInvalidInput, "password must be 1 to %d bytes", maxPasswordBytes)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
