// Package config provides 12-factor configuration management for the app host.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Apps: Built-in apps directory and import ignore globs
//   - Sandbox: Script time budget, runtime pool size, call stack depth
//   - Render: Optional markup sanitising
//   - Import: Upload and decompressed size limit
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - APPS_DIR, APPS_IGNORE, APPS_SEED
//   - SANDBOX_TIMEOUT, SANDBOX_POOL_SIZE, SANDBOX_MAX_CALL_STACK, SANDBOX_CONSOLE
//   - RENDER_SANITIZE
//   - IMPORT_MAX_BYTES
package config
