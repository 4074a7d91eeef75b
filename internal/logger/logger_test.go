package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/amoisekai/engine/internal/config"
)

func TestNewProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)
	WithStory(log, "s1", 4).Info("scene written", "scene", 2)

	out := buf.String()
	for _, want := range []string{`"story_id":"s1"`, `"chapter":4`, `"scene":2`, `"msg":"scene written"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)
	log.Info("hidden")
	WithError(log, errors.New("boom")).Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered")
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("output %q missing error attr", out)
	}
}
