package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/api"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/config"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/dataset"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/scheduler"
	"github.com/bobby-s-dev/air-quality-dashboard/internal/services"
	"github.com/bobby-s-dev/air-quality-dashboard/pkg/client"
)

func main() {
	// Initialize logger
	zapConfig := zap.NewProductionConfig()
	logger, _ := zapConfig.Build()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Air Quality Dashboard Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if level, err := zapcore.ParseLevel(cfg.Server.LogLevel); err == nil {
		zapConfig.Level.SetLevel(level)
	}

	// Initialize dataset store
	fetcher := client.NewDatasetClient(client.ClientConfig{
		Timeout:        cfg.Retry.HTTPTimeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}, logger)
	source := cfg.DatasetSource()
	store := dataset.NewStore(dataset.NewLoader(fetcher, logger), source, logger)

	// Initialize dashboard
	dashboard := services.NewDashboard(store, services.Options{
		PreviewRows:   cfg.Dataset.PreviewRows,
		CacheDuration: cfg.Cache.Duration,
		MaxCacheSize:  cfg.Cache.MaxSize,
	}, services.NewMetrics(), logger)

	// Warm up so the first request does not pay for parsing
	loadCtx, loadCancel := context.WithTimeout(context.Background(), cfg.Retry.HTTPTimeout)
	if _, _, err := store.Get(loadCtx); err != nil {
		logger.Warn("Initial dataset load failed, will retry on first request",
			zap.String("source", source),
			zap.Error(err))
	}
	loadCancel()

	// Initialize scheduler
	freshnessScheduler := scheduler.NewScheduler(
		dashboard,
		dashboard.Cache(),
		cfg.Scheduler.FreshnessInterval,
		cfg.Cache.CleanupInterval,
		logger,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  json.Marshal,
		ErrorHandler: api.ErrorHandler(logger),
	})

	// Setup handlers and routes
	handler := api.NewHandler(dashboard, api.ChartConfig{
		Width:  cfg.Chart.Width,
		Height: cfg.Chart.Height,
		Locale: cfg.Chart.Locale,
	}, logger)
	api.SetupRoutes(app, handler, dashboard.Metrics().Registry, logger)

	// Start scheduler
	if err := freshnessScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	watchCtx, stopWatching := context.WithCancel(context.Background())
	defer stopWatching()

	var watcher *scheduler.Watcher
	if cfg.Scheduler.WatchDataset && !dataset.IsRemote(source) {
		watcher, err = scheduler.NewWatcher(source, dashboard, cfg.Scheduler.ReloadMinInterval, logger)
		if err != nil {
			logger.Warn("Dataset watcher disabled", zap.Error(err))
		} else {
			watcher.Start(watchCtx)
		}
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop background work
	if watcher != nil {
		stopWatching()
		if err := watcher.Close(); err != nil {
			logger.Warn("Dataset watcher close failed", zap.Error(err))
		}
	}
	freshnessScheduler.Stop(ctx)

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
