package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Loader config
	assert.Equal(t, "apps", cfg.Apps.Dir)
	assert.True(t, cfg.Apps.Seed)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 4, cfg.Sandbox.PoolSize)
	assert.Equal(t, 1024, cfg.Sandbox.MaxCallStack)
	assert.False(t, cfg.Render.Sanitize)
	assert.Equal(t, int64(32<<20), cfg.Import.MaxBytes)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"CORS_ORIGINS":           "http://localhost:5173",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_BURST":       "1000",
		"RATE_LIMIT_ENABLED":     "false",
		"APPS_DIR":               "/srv/apps",
		"APPS_IGNORE":            "**/*.map,**/dist/**",
		"APPS_SEED":              "false",
		"SANDBOX_TIMEOUT":        "500ms",
		"SANDBOX_POOL_SIZE":      "8",
		"SANDBOX_MAX_CALL_STACK": "256",
		"SANDBOX_CONSOLE":        "false",
		"RENDER_SANITIZE":        "true",
		"IMPORT_MAX_BYTES":       "1024",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, "/srv/apps", cfg.Apps.Dir)
	assert.Equal(t, []string{"**/*.map", "**/dist/**"}, cfg.Apps.Ignore)
	assert.False(t, cfg.Apps.Seed)
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.Timeout)
	assert.Equal(t, 8, cfg.Sandbox.PoolSize)
	assert.Equal(t, 256, cfg.Sandbox.MaxCallStack)
	assert.False(t, cfg.Sandbox.Console)
	assert.True(t, cfg.Render.Sanitize)
	assert.Equal(t, int64(1024), cfg.Import.MaxBytes)
}

func TestLoadOrDefaultOnInvalidValue(t *testing.T) {
	t.Setenv("SANDBOX_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default(), cfg)
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{name: "default values", wantPort: "8000", wantHost: "0.0.0.0"},
		{name: "custom port", port: "9000", wantPort: "9000", wantHost: "0.0.0.0"},
		{name: "custom host", host: "localhost", wantPort: "8000", wantHost: "localhost"},
		{name: "custom port and host", port: "3000", host: "127.0.0.1", wantPort: "3000", wantHost: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
