package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/amoisekai/engine/internal/config"
)

// Setup configures the global slog logger based on environment
func Setup(cfg *config.Config) *slog.Logger {
	return New(cfg, os.Stdout)
}

// New builds a logger writing to w without touching the default.
func New(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if w == os.Stdout {
		slog.SetDefault(logger)
	}
	return logger
}

// Discard is a logger for tests and the console UI.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}

// WithStory scopes a logger to a story and chapter.
func WithStory(logger *slog.Logger, storyID string, chapter int) *slog.Logger {
	return logger.With("story_id", storyID, "chapter", chapter)
}
