// Package middleware provides the gin middleware of the HTTP API: CORS,
// per-IP rate limiting and request IDs.
package middleware
