package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fallback V1 credentials kept for parity with legacy deployments that never
// set the env vars. Shipping fallback secrets is a known hygiene issue; the
// env override always wins when present.
const (
	fallbackV1Key    = "imp_apikey_legacy"
	fallbackV1Secret = "c2b1f3a9d4e85f7061b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// GatewayConfig holds credentials for both payment-API generations.
// V1 authenticates by exchanging key+secret for a short-lived token;
// V2 sends a static bearer secret per request.
type GatewayConfig struct {
	V1 struct {
		BaseURL string `yaml:"base_url"`
		Key     string `yaml:"key"`
		Secret  string `yaml:"secret"`
	} `yaml:"v1"`
	V2 struct {
		BaseURL string `yaml:"base_url"`
		Secret  string `yaml:"secret"`
	} `yaml:"v2"`
}

type ReconcilerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Lookback  time.Duration `yaml:"lookback"`
	BatchSize int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies env overrides for secrets and
// connection strings, then fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// env overrides
	overrideString(&cfg.Database.URL, "DATABASE_URL")
	overrideString(&cfg.Redis.URL, "REDIS_URL")
	overrideString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	overrideString(&cfg.Gateway.V1.Key, "PORTONE_V1_KEY")
	overrideString(&cfg.Gateway.V1.Secret, "PORTONE_V1_SECRET")
	overrideString(&cfg.Gateway.V2.Secret, "PORTONE_V2_SECRET")

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Gateway.V1.BaseURL == "" {
		cfg.Gateway.V1.BaseURL = "https://api.iamport.kr"
	}
	if cfg.Gateway.V2.BaseURL == "" {
		cfg.Gateway.V2.BaseURL = "https://api.portone.io"
	}
	if cfg.Gateway.V1.Key == "" {
		cfg.Gateway.V1.Key = fallbackV1Key
	}
	if cfg.Gateway.V1.Secret == "" {
		cfg.Gateway.V1.Secret = fallbackV1Secret
	}
	// V2 has no fallback on purpose: a missing secret must surface as a
	// server configuration error, never as a payment failure.
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.Lookback <= 0 {
		cfg.Reconciler.Lookback = 24 * time.Hour
	}
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 200
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func overrideString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
