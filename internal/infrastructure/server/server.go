package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/apphost/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/bundle/importer"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/fetch"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/render"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	catalog *catalog.Catalog
	viewers *loader.Viewers
	pool    *sandbox.Pool
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing App Host",
		zap.String("port", cfg.Server.Port),
		zap.String("apps_dir", cfg.Apps.Dir),
		zap.Duration("sandbox_timeout", cfg.Sandbox.Timeout),
	)

	// Metrics first; every other component reports into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetricsWith(registry)

	// Catalog of built-in and imported apps
	cat := catalog.New(catalog.Options{Dir: cfg.Apps.Dir, Logger: logger.Logger})
	cat.SeedBuiltins()
	if cfg.Apps.Seed {
		if _, err := catalog.NewSeeder(cat).Seed(ctx); err != nil {
			logger.Warn("Failed to seed apps from disk", zap.Error(err))
		}
	}

	// Script sandbox
	sbCfg := sandbox.DefaultConfig()
	sbCfg.Timeout = cfg.Sandbox.Timeout
	sbCfg.MaxCallStack = cfg.Sandbox.MaxCallStack
	sbCfg.EnableConsole = cfg.Sandbox.Console
	pool, err := sandbox.NewPool(sbCfg, cfg.Sandbox.PoolSize, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	renderOpts := []render.Option{render.WithLogger(logger.Logger)}
	if cfg.Render.Sanitize {
		renderOpts = append(renderOpts, render.WithSanitizer(render.SanitizePolicy()))
		logger.Info("Markup sanitising enabled")
	}

	viewers := loader.NewViewers(loader.Deps{
		Fetcher:  fetch.NewFromFS(fetch.NewOSFS(cat.Root()), logger.Logger),
		Renderer: render.New(renderOpts...),
		Executor: sandbox.NewExecutor(pool, logger.Logger),
		Recorder: metrics,
		Logger:   logger.Logger,
	})

	imp := importer.New(importer.Options{
		Ignore:   cfg.Apps.Ignore,
		MaxBytes: cfg.Import.MaxBytes,
		Logger:   logger.Logger,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Options{
		Catalog:  cat,
		Importer: imp,
		Viewers:  viewers,
		Sandbox:  pool,
		Recorder: metrics,
		Logger:   logger.Logger,
		MaxBytes: cfg.Import.MaxBytes,
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(viewers, metrics, logger.Logger, nil)
	router.GET("/viewers/:id/stream", wsHandler.HandleStream)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/metrics/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	})

	logger.Info("Server initialized successfully", zap.Int("apps", cat.Len()))

	return &Server{
		router:  router,
		catalog: cat,
		viewers: viewers,
		pool:    pool,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		http: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every viewer and the sandbox
// pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}

	s.viewers.CloseAll()
	if perr := s.pool.Close(); perr != nil {
		s.logger.Error("Failed to close sandbox pool", zap.Error(perr))
		err = errors.Join(err, fmt.Errorf("failed to close sandbox pool: %w", perr))
	}

	_ = s.logger.Sync()
	return err
}
