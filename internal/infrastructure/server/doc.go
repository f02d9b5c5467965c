// Package server wires the app host together.
//
// NewServer builds, in order:
//  1. Logger and Prometheus registry
//  2. App catalog, seeded with the built-in apps and any app.config files
//     found below the apps directory
//  3. Script sandbox pool and executor
//  4. Fetcher, renderer and the viewer registry
//  5. Bundle importer
//  6. Gin router with request ID, metrics, CORS and rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
