package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	Upstream UpstreamConfig
	Session  SessionConfig
	Live     LiveConfig
	Audit    AuditConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type UpstreamConfig struct {
	URL     string        `env:"UPSTREAM_URL,     required"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT, default=15s"`
}

type SessionConfig struct {
	// Backend selects where credentials live: "redis" or "memory".
	Backend           string        `env:"SESSION_BACKEND,     default=redis"`
	DurableTTL        time.Duration `env:"DURABLE_TTL,         default=720h"`
	EphemeralTTL      time.Duration `env:"EPHEMERAL_TTL,       default=12h"`
	VerifyTimeout     time.Duration `env:"VERIFY_TIMEOUT,      default=10s"`
	RevokeOnForbidden bool          `env:"REVOKE_ON_FORBIDDEN, default=true"`
	CookieSecure      bool          `env:"COOKIE_SECURE,       default=true"`
	ShellCacheSize    int           `env:"SHELL_CACHE_SIZE,    default=10000"`
}

type LiveConfig struct {
	PollInterval time.Duration `env:"POLL_INTERVAL, default=15s"`
}

type AuditConfig struct {
	Workers   int           `env:"AUDIT_WORKERS,   default=4"`
	Retention time.Duration `env:"AUDIT_RETENTION, default=2160h"`
}

// MongoConfig is optional: an empty URI disables the audit trail.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=portal"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("SESSION_BACKEND must be redis or memory, got %q", c.Session.Backend)
	}
	if c.Session.ShellCacheSize <= 0 {
		return fmt.Errorf("SHELL_CACHE_SIZE must be positive")
	}
	return nil
}

// Production reports whether the gateway runs in the production environment.
func (c *Config) Production() bool {
	return c.Env == "production"
}
