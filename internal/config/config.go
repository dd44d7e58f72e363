// Package config loads node configuration from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	KeystoreMemory = "memory"
	KeystoreLocal  = "local"
)

// Config holds node configuration.
type Config struct {
	HTTPAddr        string        `env:"SIGNER_HTTP_ADDR" envDefault:":8080"`
	StateBackend    string        `env:"SIGNER_STATE_BACKEND" envDefault:"memory"`
	SQLitePath      string        `env:"SIGNER_SQLITE_PATH" envDefault:"data/state.db"`
	PostgresDSN     string        `env:"SIGNER_POSTGRES_DSN"`
	RedisAddr       string        `env:"SIGNER_REDIS_ADDR"`
	RedisPassword   string        `env:"SIGNER_REDIS_PASSWORD"`
	RedisDB         int           `env:"SIGNER_REDIS_DB" envDefault:"0"`
	RedisPrefix     string        `env:"SIGNER_REDIS_PREFIX" envDefault:"signer"`
	RedisEvents     bool          `env:"SIGNER_REDIS_EVENTS" envDefault:"false"`
	KeystoreBackend string        `env:"SIGNER_KEYSTORE" envDefault:"memory"`
	KeystorePath    string        `env:"SIGNER_KEYSTORE_PATH" envDefault:"data/keystore"`
	Scheme          string        `env:"SIGNER_SCHEME" envDefault:"ed25519"`
	DevKey          bool          `env:"SIGNER_DEV_KEY" envDefault:"false"`
	BlockTime       time.Duration `env:"SIGNER_BLOCK_TIME" envDefault:"6s"`
	TokenSecret     string        `env:"SIGNER_TOKEN_SECRET"`
	TokenIssuer     string        `env:"SIGNER_TOKEN_ISSUER" envDefault:"signing-node"`
	EventHistory    int           `env:"SIGNER_EVENT_HISTORY" envDefault:"256"`
	Verbose         bool          `env:"SIGNER_VERBOSE" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config. Flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	fs.StringVar(&cfg.StateBackend, "state", cfg.StateBackend, "counter state backend: memory, sqlite, redis, postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres DSN")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	fs.BoolVar(&cfg.RedisEvents, "redis-events", cfg.RedisEvents, "publish events to Redis")
	fs.StringVar(&cfg.KeystoreBackend, "keystore", cfg.KeystoreBackend, "key store: memory, local")
	fs.StringVar(&cfg.KeystorePath, "keystore-path", cfg.KeystorePath, "local key store directory")
	fs.StringVar(&cfg.Scheme, "scheme", cfg.Scheme, "signing scheme: ed25519, ecdsa, rsa")
	fs.BoolVar(&cfg.DevKey, "dev", cfg.DevKey, "insert a development signing key at startup")
	fs.DurationVar(&cfg.BlockTime, "block-time", cfg.BlockTime, "block interval")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	var errs []error
	switch c.StateBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SIGNER_SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("SIGNER_REDIS_ADDR is required for the redis backend"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("SIGNER_POSTGRES_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.StateBackend))
	}
	if c.RedisEvents && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("SIGNER_REDIS_ADDR is required for redis events"))
	}
	switch c.KeystoreBackend {
	case KeystoreMemory, KeystoreLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown keystore %q", c.KeystoreBackend))
	}
	if c.BlockTime <= 0 {
		errs = append(errs, errors.New("block time must be positive"))
	}
	if len(c.TokenSecret) < 16 {
		errs = append(errs, errors.New("SIGNER_TOKEN_SECRET must be at least 16 bytes"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether a Redis client must be opened.
func (c Config) NeedsRedis() bool {
	return c.StateBackend == BackendRedis || c.RedisEvents
}
