// Package logging builds the slog loggers shared by the dashboard and ingest
// commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// ParseEnv validates APP_ENV. Empty means dev.
func ParseEnv(s string) (string, error) {
	env := strings.TrimSpace(s)
	if env == "" {
		env = "dev"
	}
	switch env {
	case "dev", "prod":
		return env, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", s)
	}
}

// New returns a colourised text logger in dev and a JSON logger otherwise.
func New(env string, level slog.Level, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, env, level, appName)
}

func newWithWriter(w io.Writer, env string, level slog.Level, appName string) *slog.Logger {
	if env == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(
		"app", appName,
		"env", env,
	)
}
