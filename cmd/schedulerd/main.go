package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	charmlog "github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"custody-schedule-backend/config"
	"custody-schedule-backend/internal/api"
	"custody-schedule-backend/internal/db"
	"custody-schedule-backend/internal/metrics"
	"custody-schedule-backend/internal/notification"
	"custody-schedule-backend/internal/scheduling"
	"custody-schedule-backend/internal/store"
	"custody-schedule-backend/internal/sweeper"
)

func main() {
	// Setup logger
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "schedulerd",
	})

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", "path", configPath, "err", err)
	}
	if level, err := charmlog.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.Logging.Level)
	}
	logger.Info("configuration loaded", "path", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", "err", err)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Seed(ctx, gormDB, cfg.Seed); err != nil {
		logger.Fatal("failed to seed reference data", "err", err)
	}

	appStore := store.NewGormStore(gormDB)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	// Shared with the router so background writers can drop cached reads.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	responseCache := cache.New(cacheTTL, 2*cacheTTL)

	var webpushOptions *webpush.Options
	var alerts scheduling.Dispatcher
	if cfg.Push.Enabled {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, logger, rec)
		pool.SetInvalidator(responseCache)
		pool.Start(ctx)
		alerts = pool
		logger.Info("conflict alerts enabled", "workers", cfg.WorkerPool.Size)
	} else {
		logger.Warn("push is disabled, conflict alerts will not be sent")
	}

	svc := scheduling.NewService(appStore, alerts, logger, rec)

	sweeperSvc := sweeper.NewService(cfg.Sweeper, svc, logger, rec)
	sweeperSvc.SetInvalidator(responseCache)
	go sweeperSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(svc, appStore, webpushOptions, reg, logger, api.RouterConfig{
		RateLimit:   rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst:   cfg.Server.RateLimitBurst,
		CacheTTL:    cacheTTL,
		ActorHeader: cfg.Server.ActorHeader,
		Cache:       responseCache,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", "err", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server Shutdown", "err", err)
	}

	logger.Info("server gracefully stopped")
}
