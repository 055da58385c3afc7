package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dashboard/config"
	httpserver "github.com/02loveslollipop/Shizuku-air-quality/services/dashboard/http"
	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel, "dashboard")
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: cfg.RequestTimeout}
	loader := dataset.NewLoader(client, cfg.Dataset, logger)

	if cfg.Warmup {
		go warm(ctx, loader, cfg.RequestTimeout, logger)
	}

	if cfg.RefreshSchedule != "" {
		c, err := scheduleRefresh(ctx, cfg.RefreshSchedule, loader, cfg.RequestTimeout, logger)
		if err != nil {
			return err
		}
		defer c.Stop()
		logger.Info("dataset refresh scheduled", "schedule", cfg.RefreshSchedule)
	}

	srv := httpserver.New(cfg, loader, logger)
	logger.Info("dashboard listening", "addr", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("dashboard stopped")
	return nil
}

// datasetCache is the part of the loader the background jobs drive.
type datasetCache interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	Invalidate()
}

// scheduleRefresh starts a cron job that drops and reloads the dataset.
func scheduleRefresh(ctx context.Context, spec string, cache datasetCache, timeout time.Duration, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	if err := c.AddFunc(spec, func() {
		refresh(ctx, cache, timeout, logger)
	}); err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	c.Start()
	return c, nil
}

func refresh(ctx context.Context, cache datasetCache, timeout time.Duration, logger *slog.Logger) {
	logger.Info("scheduled dataset refresh")
	cache.Invalidate()
	warm(ctx, cache, timeout, logger)
}

// warm loads the dataset so the first page view does not pay for the download.
// Errors are logged by the loader and retried on the next request.
func warm(ctx context.Context, cache datasetCache, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := cache.Load(ctx); err != nil {
		logger.Warn("dataset warmup failed", "error", err)
	}
}
