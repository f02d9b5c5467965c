// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *zap.Logger, default to zap.NewNop() and name their
// own sub-logger ("viewer", "sandbox", "importer", "catalog").
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("port", "8000"))
//	viewers := loader.NewViewers(loader.Deps{Logger: logger.Logger})
package logging
