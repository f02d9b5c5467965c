package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Apps      AppsConfig
	Sandbox   SandboxConfig
	Render    RenderConfig
	Import    ImportConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// AppsConfig locates the built-in apps.
type AppsConfig struct {
	Dir    string   `envconfig:"APPS_DIR" default:"apps"`
	Ignore []string `envconfig:"APPS_IGNORE"`
	Seed   bool     `envconfig:"APPS_SEED" default:"true"`
}

// SandboxConfig holds script execution limits.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"2s"`
	PoolSize     int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	MaxCallStack int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	Console      bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// RenderConfig holds renderer options.
type RenderConfig struct {
	Sanitize bool `envconfig:"RENDER_SANITIZE" default:"false"`
}

// ImportConfig holds bundle import limits.
type ImportConfig struct {
	MaxBytes int64 `envconfig:"IMPORT_MAX_BYTES" default:"33554432"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Apps: AppsConfig{
			Dir:  "apps",
			Seed: true,
		},
		Sandbox: SandboxConfig{
			Timeout:      2 * time.Second,
			PoolSize:     4,
			MaxCallStack: 1024,
			Console:      true,
		},
		Render: RenderConfig{
			Sanitize: false,
		},
		Import: ImportConfig{
			MaxBytes: 32 << 20,
		},
	}
}
