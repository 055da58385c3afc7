package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
	"github.com/02loveslollipop/Shizuku-air-quality/services/logging"
)

const (
	DefaultDatasetURL    = "https://github.com/MuhammadZainudin/Air-Quality-Dataset/archive/refs/heads/main.zip"
	DefaultDataDir       = "air_quality_dataset"
	DefaultDatasetFolder = "Air-Quality-Dataset-main"
)

// Config holds environment-driven settings for the dashboard.
type Config struct {
	AppEnv   string
	LogLevel slog.Level

	Dataset        dataset.Source
	RequestTimeout time.Duration
	// RefreshSchedule is a cron spec; empty disables scheduled reloads.
	RefreshSchedule string
	Warmup          bool

	Port             int
	BearerToken      string
	PreviewRows      int
	ScatterMaxPoints int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Dataset: dataset.Source{
			URL:     DefaultDatasetURL,
			DataDir: DefaultDataDir,
			Folder:  DefaultDatasetFolder,
		},
		RequestTimeout:   2 * time.Minute,
		Warmup:           true,
		Port:             8080,
		PreviewRows:      5,
		ScatterMaxPoints: 20000,
	}

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

	if v := strings.TrimSpace(os.Getenv("DATASET_URL")); v != "" {
		cfg.Dataset.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATASET_DATA_DIR")); v != "" {
		cfg.Dataset.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DATASET_FOLDER")); v != "" {
		cfg.Dataset.Folder = v
	}

	if v := strings.TrimSpace(os.Getenv("DATASET_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid DATASET_REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("DATASET_REFRESH_SCHEDULE")); v != "" {
		if _, err := cron.Parse(v); err != nil {
			return cfg, fmt.Errorf("invalid DATASET_REFRESH_SCHEDULE: %w", err)
		}
		cfg.RefreshSchedule = v
	}

	if v := strings.TrimSpace(os.Getenv("DATASET_WARMUP")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DATASET_WARMUP: %s", v)
		}
		cfg.Warmup = b
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if rowsStr := os.Getenv("PREVIEW_ROWS"); rowsStr != "" {
		if rows, err := strconv.Atoi(rowsStr); err == nil && rows > 0 {
			cfg.PreviewRows = rows
		} else {
			return cfg, fmt.Errorf("invalid PREVIEW_ROWS: %s", rowsStr)
		}
	}

	if ptsStr := os.Getenv("SCATTER_MAX_POINTS"); ptsStr != "" {
		if pts, err := strconv.Atoi(ptsStr); err == nil && pts >= 0 {
			cfg.ScatterMaxPoints = pts
		} else {
			return cfg, fmt.Errorf("invalid SCATTER_MAX_POINTS: %s", ptsStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
