// Package main is the entry point for the app host server.
//
// The server keeps a catalog of sub-apps, imports new bundles from
// uploads, and opens apps into isolated viewers. Each viewer renders an
// app inside a shadow root and runs its scripts in a sandboxed runtime.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -apps ./apps
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
