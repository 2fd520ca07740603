// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a double
// underscore, e.g. VELTRIX_SESSION__BACKEND=redis.
const EnvPrefix = "VELTRIX_"

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port           string          `koanf:"port"`
	GRPCPort       string          `koanf:"grpc_port"`
	FrontendURL    string          `koanf:"frontend_url"`
	DBPath         string          `koanf:"db_path"`
	LogLevel       string          `koanf:"log_level"`
	AllowedOrigins []string        `koanf:"allowed_origins"`
	SeedDemoData   bool            `koanf:"seed_demo_data"`
	Session        SessionConfig   `koanf:"session"`
	Redis          RedisConfig     `koanf:"redis"`
	Generator      GeneratorConfig `koanf:"generator"`
	RateLimit      RateLimitConfig `koanf:"rate_limit"`
	Retry          RetryConfig     `koanf:"retry"`
}

// SessionConfig controls the dialogue session store.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RedisConfig holds connection settings for the redis session backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// GeneratorConfig configures the OpenAI-compatible fallback generator.
type GeneratorConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	Model     string        `koanf:"model"`
	MaxTokens int           `koanf:"max_tokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

// RateLimitConfig controls per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"rps"`
	Burst             int     `koanf:"burst"`
}

// RetryConfig controls retries of idempotent catalog and order reads.
type RetryConfig struct {
	MaxTries        uint          `koanf:"max_tries"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:           "8080",
		GRPCPort:       "9090",
		DBPath:         "./data/veltrix.db",
		LogLevel:       "info",
		AllowedOrigins: []string{"*"},
		Session: SessionConfig{
			Backend:       SessionBackendMemory,
			IdleTTL:       24 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "veltrix:session:",
		},
		Generator: GeneratorConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "llama-3.3-70b-versatile",
			MaxTokens: 200,
			Timeout:   20 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             10,
		},
		Retry: RetryConfig{
			MaxTries:        3,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// VELTRIX_* environment variables, in that order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("access config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The generator key is commonly provided under its vendor name.
	if cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = os.Getenv("GROQ_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path cannot be empty")
	}
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis session backend")
		}
	default:
		return fmt.Errorf("invalid session.backend %q: must be memory or redis", c.Session.Backend)
	}
	if c.Session.IdleTTL < 0 {
		return fmt.Errorf("session.idle_ttl must be >= 0")
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be > 0 when idle_ttl is set")
	}
	if c.Generator.MaxTokens <= 0 {
		return fmt.Errorf("generator.max_tokens must be > 0")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("generator.timeout must be > 0")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be > 0")
	}
	if c.Retry.MaxTries == 0 {
		return fmt.Errorf("retry.max_tries must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
