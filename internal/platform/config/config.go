// Package config loads process configuration. Sources are layered from low to
// high precedence: built-in defaults, an optional YAML file, then TRUSTSCORE_*
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "TRUSTSCORE_"
	envFile   = "TRUSTSCORE_CONFIG"

	devSigningKey = "dev-secret-key-change-in-production"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// DatabaseURL selects PostgreSQL storage. Empty runs on in-memory stores.
	DatabaseURL string `koanf:"database_url"`

	// RedisURL enables the evaluation read cache.
	RedisURL string        `koanf:"redis_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// KafkaBrokers is a comma-separated broker list. Empty disables the outbox relay.
	KafkaBrokers   string        `koanf:"kafka_brokers"`
	KafkaTopic     string        `koanf:"kafka_topic"`
	OutboxInterval time.Duration `koanf:"outbox_interval"`
	OutboxBatch    int           `koanf:"outbox_batch"`

	JWTSigningKey string `koanf:"jwt_signing_key"`
	JWTIssuer     string `koanf:"jwt_issuer"`
	JWTAudience   string `koanf:"jwt_audience"`

	// RegistryPath points at a registry YAML artifact. Empty uses the embedded default.
	RegistryPath string `koanf:"registry_path"`

	TxTimeout       time.Duration `koanf:"tx_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns the built-in defaults.
func New() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		CacheTTL:        5 * time.Minute,
		KafkaTopic:      "trustscore.audit",
		OutboxInterval:  time.Second,
		OutboxBatch:     100,
		JWTSigningKey:   devSigningKey,
		JWTIssuer:       "trustscore",
		JWTAudience:     "trustscore-admin",
		TxTimeout:       5 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load layers defaults, the YAML file at path (or $TRUSTSCORE_CONFIG when path
// is empty), and TRUSTSCORE_* environment variables.
func Load(_ context.Context, path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TRUSTSCORE_DATABASE_URL -> database_url. Underscores are kept so keys
	// match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or text, got %q", c.LogFormat))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("jwt_signing_key must not be empty"))
	}
	if c.TxTimeout <= 0 {
		errs = append(errs, errors.New("tx_timeout must be positive"))
	}
	if c.RedisURL != "" && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_ttl must be positive when redis_url is set"))
	}
	if len(c.Brokers()) > 0 {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("kafka_brokers requires database_url: the outbox lives in PostgreSQL"))
		}
		if c.KafkaTopic == "" {
			errs = append(errs, errors.New("kafka_topic must not be empty"))
		}
	}
	return errors.Join(errs...)
}

// Brokers splits KafkaBrokers.
func (c *Config) Brokers() []string {
	var out []string
	for b := range strings.SplitSeq(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c *Config) UsesDevSigningKey() bool {
	return c.JWTSigningKey == devSigningKey
}
