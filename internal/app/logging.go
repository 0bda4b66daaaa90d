package app

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fitbuddy/fitbuddy-hub/config"
	"github.com/fitbuddy/fitbuddy-hub/pkg/logger"
)

// NewSlogLogger builds the process logger. JSON unless LOG_FORMAT=text.
func NewSlogLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.App.Debug}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"app", cfg.App.Name,
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)
}

// NewRequestLogger builds the leveled logger used by the HTTP layer.
func NewRequestLogger(cfg *config.Config) *logger.Logger {
	format := logger.FormatJSON
	if strings.EqualFold(cfg.Observability.LogFormat, "text") {
		format = logger.FormatText
	}
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    format,
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name))
}
