package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/logging"
)

const (
	defaultDatasetURL     = "https://github.com/MuhammadZainudin/Air-Quality-Dataset/archive/refs/heads/main.zip"
	defaultDataDir        = "air_quality_dataset"
	defaultDatasetFolder  = "Air-Quality-Dataset-main"
	defaultRequestTimeout = 2 * time.Minute
	defaultBatchSize      = 1000
)

// Config holds runtime configuration for the ingest job.
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DatabaseURL    string
	Dataset        dataset.Source
	RequestTimeout time.Duration
	BatchSize      int
	DryRun         bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	env, err := logging.ParseEnv(os.Getenv("APP_ENV"))
	if err != nil {
		return cfg, err
	}
	cfg.AppEnv = env

	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return cfg, err
	}
	cfg.LogLevel = level

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.Dataset = dataset.Source{
		URL:     envOr("DATASET_URL", defaultDatasetURL),
		DataDir: envOr("DATASET_DATA_DIR", defaultDataDir),
		Folder:  envOr("DATASET_FOLDER", defaultDatasetFolder),
	}

	cfg.RequestTimeout = defaultRequestTimeout
	if v := strings.TrimSpace(os.Getenv("DATASET_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DATASET_REQUEST_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("invalid DATASET_REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	cfg.BatchSize = defaultBatchSize
	if v := strings.TrimSpace(os.Getenv("INGEST_BATCH_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid INGEST_BATCH_SIZE: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("invalid INGEST_BATCH_SIZE: %d", n)
		}
		cfg.BatchSize = n
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
