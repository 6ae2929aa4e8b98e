package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	PublicURL string     `env:"GEOTAGGER_PUBLIC_URL" envDefault:"http://localhost:3000"`
	SPADir    string     `env:"SPA_DIR"`

	BackendURL string `env:"GEOTAGGER_BACKEND_URL" envDefault:"http://127.0.0.1:8000"`
	APIKey     string `env:"GEOTAGGER_API_KEY"`

	Profile  string `env:"GEOTAGGER_PROFILE" envDefault:"default"`
	Storage  string `env:"GEOTAGGER_STORAGE" envDefault:"sqlite"`
	DBPath   string `env:"GEOTAGGER_DB_PATH" envDefault:"geotagger.db"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`

	BalanceRetry   time.Duration `env:"GEOTAGGER_BALANCE_RETRY" envDefault:"5s"`
	ResubmitPolicy string        `env:"GEOTAGGER_RESUBMIT_POLICY" envDefault:"rescore"`
}

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageSQLite, StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite, redis or memory)", c.Storage)
	}
	if c.Profile == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend url must not be empty")
	}
	if c.BalanceRetry < 0 {
		return fmt.Errorf("balance retry must not be negative: %s", c.BalanceRetry)
	}
	return nil
}
