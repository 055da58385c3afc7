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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/config"
	"github.com/02loveslollipop/Shizuku-air-quality/services/ingest/internal/db"
	"github.com/02loveslollipop/Shizuku-air-quality/services/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel, "ingest")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: cfg.RequestTimeout}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout+10*time.Second)
	defer cancel()
	ds, err := dataset.Load(loadCtx, client, cfg.Dataset)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "files", len(ds.Files), "rows", ds.Len())

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if _, err := ingest(ctx, db.NewStore(pool), ds, cfg, logger); err != nil {
		return err
	}
	return nil
}
