// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Credential formats.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr is the address of the /metrics and health HTTP endpoint; empty disables it.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN. Required when SessionStore is postgres; accounts always live in Postgres unless the store is memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is a redis:// URL. Required when SessionStore is redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionStore selects the session ledger backend: postgres, redis or memory.
	SessionStore string `mapstructure:"SESSION_STORE"`

	// CredentialFormat selects the credential codec: jwt or paseto.
	CredentialFormat string `mapstructure:"CREDENTIAL_FORMAT"`
	// JWTPrivateKey is the PEM-encoded private key (RSA, ECDSA or Ed25519) or path to file; used with JWT_PUBLIC_KEY.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTSecret is a shared HS256 secret, used when no key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access credential lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh credential lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// PasetoSecretKeyHex is the hex Ed25519 secret key for v4.public tokens.
	PasetoSecretKeyHex string `mapstructure:"PASETO_SECRET_KEY_HEX"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// MaxActiveSessions is the per-account cap on active sessions; default 5.
	MaxActiveSessions int `mapstructure:"MAX_ACTIVE_SESSIONS"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables the Kafka event sink.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SessionEventsTopic is the Kafka topic for session lifecycle events.
	SessionEventsTopic string `mapstructure:"SESSION_EVENTS_TOPIC"`

	// OTLPEndpoint is the OTLP/gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to an https endpoint.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL, for tools (migrations, seeding) that do not
// need the credential or transport settings.
func LoadDatabaseURL() (string, error) {
	cfg, err := read()
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("config: DATABASE_URL must be set; create a .env from .env.example or export it")
	}
	return cfg.DatabaseURL, nil
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv picks it up in Unmarshal.
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_STORE", StorePostgres)
	v.SetDefault("CREDENTIAL_FORMAT", FormatJWT)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "authcore-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("PASETO_SECRET_KEY_HEX", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAX_ACTIVE_SESSIONS", 5)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SESSION_EVENTS_TOPIC", "authcore.session-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	cfg.CredentialFormat = strings.ToLower(strings.TrimSpace(cfg.CredentialFormat))
	return &cfg, nil
}

// Validate checks field ranges and the combinations each backend needs.
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}

	switch c.SessionStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
		}
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for the account store")
		}
	case StoreMemory:
		if c.Env == "production" {
			return errors.New("config: SESSION_STORE=memory is not allowed when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be one of postgres, redis, memory; got %q", c.SessionStore)
	}

	switch c.CredentialFormat {
	case FormatJWT:
		hasPair := c.JWTPrivateKey != "" && c.JWTPublicKey != ""
		if !hasPair && c.JWTSecret == "" {
			return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY, or JWT_SECRET, must be set when CREDENTIAL_FORMAT=jwt")
		}
		if (c.JWTPrivateKey == "") != (c.JWTPublicKey == "") {
			return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
		}
	case FormatPaseto:
		if c.PasetoSecretKeyHex == "" {
			return errors.New("config: PASETO_SECRET_KEY_HEX must be set when CREDENTIAL_FORMAT=paseto")
		}
	default:
		return fmt.Errorf("config: CREDENTIAL_FORMAT must be jwt or paseto; got %q", c.CredentialFormat)
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.MaxActiveSessions < 1 {
		return errors.New("config: MAX_ACTIVE_SESSIONS must be at least 1")
	}
	if _, err := parseTTL("JWT_ACCESS_TTL", c.JWTAccessTTL); err != nil {
		return err
	}
	if _, err := parseTTL("JWT_REFRESH_TTL", c.JWTRefreshTTL); err != nil {
		return err
	}
	return nil
}

func parseTTL(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration (e.g. 15m, 168h); got %q", key, s)
	}
	return d, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means the Kafka event sink is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
