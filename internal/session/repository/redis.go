package repository

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"authcore/backend/internal/device"
	"authcore/backend/internal/session/domain"
)

// Each session is a hash. Per account, a sorted set of all session ids and one of the
// active ids, both scored by creation time in microseconds.
const revokeScript = `
local acct = redis.call("HGET", KEYS[1], "account_id")
if not acct then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "reason", ARGV[2], "revoked_at", ARGV[3])
redis.call("ZREM", ARGV[1] .. acct .. ":active", ARGV[4])
return 1
`

const touchScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "last_used_at", ARGV[1])
  return 1
end
return 0
`

var (
	revokeLua = redis.NewScript(revokeScript)
	touchLua  = redis.NewScript(touchScript)
)

// RedisRepository is a ledger kept in Redis. It provides no account lock; concurrent
// logins for one account may transiently exceed the cap. Revoke is a compare-and-set,
// so a renewal credential still rotates at most once.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository returns a ledger on rdb. Keys are namespaced under prefix
// (default "authcore:").
func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "authcore:"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: utcNow}
}

// WithClock replaces the time source used for touch and revoke timestamps.
func (r *RedisRepository) WithClock(now func() time.Time) *RedisRepository {
	r.now = now
	return r
}

// Ping checks connectivity.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRepository) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *RedisRepository) accountPrefix() string      { return r.prefix + "account:" }
func (r *RedisRepository) allKey(accountID string) string {
	return r.accountPrefix() + accountID + ":sessions"
}
func (r *RedisRepository) activeKey(accountID string) string {
	return r.accountPrefix() + accountID + ":active"
}

func (r *RedisRepository) Insert(ctx context.Context, s *domain.Session) (string, error) {
	if s.ID == "" {
		s.ID = NewID()
	}
	score := float64(s.CreatedAt.UnixMicro())
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(s.ID), encodeSession(s))
		pipe.ZAdd(ctx, r.allKey(s.AccountID), redis.Z{Score: score, Member: s.ID})
		if s.IsActive() {
			pipe.ZAdd(ctx, r.activeKey(s.AccountID), redis.Z{Score: score, Member: s.ID})
		}
		return nil
	})
	if err != nil {
		return "", oops.Code("SESSION_INSERT_FAILED").With("session_id", s.ID).Wrap(err)
	}
	return s.ID, nil
}

func (r *RedisRepository) FindActiveByAccountAndFingerprint(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	active, err := r.FindActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := active[:0]
	for _, s := range active {
		if s.Fingerprint.Equal(fp) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *RedisRepository) FindActiveByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	ids, err := r.rdb.ZRange(ctx, r.activeKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").With("account_id", accountID).Wrap(err)
	}
	list, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, s := range list {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return oldestFirst(out[i], out[j]) })
	return out, nil
}

func (r *RedisRepository) FindActiveByAccountAndCandidateCredential(ctx context.Context, accountID string, fp device.Fingerprint) ([]*domain.Session, error) {
	return r.FindActiveByAccountAndFingerprint(ctx, accountID, fp)
}

func (r *RedisRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.allKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	list, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return oldestFirst(list[j], list[i]) })
	return list, nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	m, err := r.rdb.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("session_id", id).Wrap(err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	s, err := decodeSession(id, m)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("session_id", id).Wrap(err)
	}
	return s, nil
}

// Revoke flags the session and drops it from the account's active set atomically.
// Only the caller whose script run flipped the flag gets true.
func (r *RedisRepository) Revoke(ctx context.Context, id string, reason domain.RevocationReason) (bool, error) {
	n, err := revokeLua.Run(ctx, r.rdb, []string{r.sessionKey(id)},
		r.accountPrefix(), string(reason), r.now().Format(time.RFC3339Nano), id).Int()
	if err != nil {
		return false, oops.Code("SESSION_REVOKE_FAILED").With("session_id", id).With("reason", reason).Wrap(err)
	}
	return n == 1, nil
}

func (r *RedisRepository) CountActive(ctx context.Context, accountID string) (int, error) {
	n, err := r.rdb.ZCard(ctx, r.activeKey(accountID)).Result()
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").With("account_id", accountID).Wrap(err)
	}
	return int(n), nil
}

func (r *RedisRepository) Touch(ctx context.Context, id string) error {
	err := touchLua.Run(ctx, r.rdb, []string{r.sessionKey(id)}, r.now().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").With("session_id", id).Wrap(err)
	}
	return nil
}

// load fetches session hashes in one round trip, skipping ids whose hash is gone.
func (r *RedisRepository) load(ctx context.Context, ids []string) ([]*domain.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.sessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").Wrap(err)
	}
	out := make([]*domain.Session, 0, len(ids))
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			continue
		}
		s, err := decodeSession(ids[i], m)
		if err != nil {
			return nil, oops.Code("SESSION_CORRUPT").With("session_id", ids[i]).Wrap(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func encodeSession(s *domain.Session) map[string]any {
	m := map[string]any{
		"account_id":     s.AccountID,
		"hash":           s.RenewalCredentialHash,
		"user_agent":     s.Fingerprint.UserAgentRaw,
		"network_origin": s.Fingerprint.NetworkOrigin,
		"browser":        s.Descriptor.Browser,
		"os":             s.Descriptor.OS,
		"platform":       s.Descriptor.Platform,
		"device_label":   s.Descriptor.DeviceLabel,
		"revoked":        "0",
		"reason":         string(s.RevocationReason),
		"created_at":     s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"last_used_at":   s.LastUsedAt.UTC().Format(time.RFC3339Nano),
		"revoked_at":     "",
	}
	if s.Revoked {
		m["revoked"] = "1"
	}
	if s.RevokedAt != nil {
		m["revoked_at"] = s.RevokedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func decodeSession(id string, m map[string]string) (*domain.Session, error) {
	s := &domain.Session{
		ID:                    id,
		AccountID:             m["account_id"],
		RenewalCredentialHash: m["hash"],
		Fingerprint: device.Fingerprint{
			UserAgentRaw:  m["user_agent"],
			NetworkOrigin: m["network_origin"],
		},
		Descriptor: device.Descriptor{
			Browser:     m["browser"],
			OS:          m["os"],
			Platform:    m["platform"],
			DeviceLabel: m["device_label"],
		},
		Revoked:          m["revoked"] == "1",
		RevocationReason: domain.RevocationReason(m["reason"]),
	}
	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, m["created_at"]); err != nil {
		return nil, err
	}
	if s.LastUsedAt, err = time.Parse(time.RFC3339Nano, m["last_used_at"]); err != nil {
		return nil, err
	}
	if v := m["revoked_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, err
		}
		s.RevokedAt = &t
	}
	return s, nil
}
