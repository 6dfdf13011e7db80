package main

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	accountrepo "authcore/backend/internal/account/repository"
	auditrepo "authcore/backend/internal/audit/repository"
	"authcore/backend/internal/config"
	"authcore/backend/internal/db"
	healthhandler "authcore/backend/internal/health/handler"
	"authcore/backend/internal/security"
	sessionrepo "authcore/backend/internal/session/repository"
)

const redisKeyPrefix = "authcore:"

// stores holds the account store and session ledger selected by SESSION_STORE.
type stores struct {
	accounts accountrepo.Repository
	ledger   sessionrepo.Repository
	audit    auditrepo.Repository // nil for the memory store
	pingers  []healthhandler.Pinger
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the backends for cfg.SessionStore. Accounts live in Postgres for
// the postgres and redis stores.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}
	if cfg.SessionStore == config.StoreMemory {
		st.accounts = accountrepo.NewMemoryRepository()
		st.ledger = sessionrepo.NewMemoryRepository()
		return st, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, pool.Close)
	st.pingers = append(st.pingers, pool)
	st.accounts = accountrepo.NewPostgresRepository(pool)
	st.audit = auditrepo.NewPostgresRepository(pool)

	switch cfg.SessionStore {
	case config.StorePostgres:
		st.ledger = sessionrepo.NewPostgresRepository(pool)
	case config.StoreRedis:
		ledger, closeRedis, err := openRedisLedger(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, closeRedis)
		st.pingers = append(st.pingers, ledger)
		st.ledger = ledger
	default:
		st.Close()
		return nil, oops.Code("CONFIG_INVALID").With("session_store", cfg.SessionStore).Errorf("unknown session store")
	}
	return st, nil
}

func openRedisLedger(ctx context.Context, url string) (*sessionrepo.RedisRepository, func(), error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, oops.Code("REDIS_URL_INVALID").Wrap(err)
	}
	rdb := redis.NewClient(opts)
	ledger := sessionrepo.NewRedisRepository(rdb, redisKeyPrefix)
	if err := ledger.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return ledger, func() { _ = rdb.Close() }, nil
}

// buildCodec returns the credential codec for cfg.CredentialFormat. JWT prefers an
// asymmetric key pair and falls back to the HS256 shared secret.
func buildCodec(cfg *config.Config) (security.Codec, error) {
	switch cfg.CredentialFormat {
	case config.FormatPaseto:
		codec, err := security.NewPasetoCodec(cfg.PasetoSecretKeyHex, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
		return codec, nil
	case config.FormatJWT:
		if strings.TrimSpace(cfg.JWTPrivateKey) != "" {
			codec, err := security.NewCodecFromPEM(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
			if err != nil {
				return nil, err
			}
			return codec, nil
		}
		return security.NewHMACTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("credential_format", cfg.CredentialFormat).Errorf("unknown credential format")
	}
}

var _ healthhandler.Pinger = (*pgxpool.Pool)(nil)
