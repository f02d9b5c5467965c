package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	appsDir := flag.String("apps", cfg.Apps.Dir, "Directory holding built-in app folders")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	sanitize := flag.Bool("sanitize", cfg.Render.Sanitize, "Sanitize app markup before rendering")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Apps.Dir = *appsDir
	cfg.Render.Sanitize = *sanitize
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
