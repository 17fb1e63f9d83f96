package logging

import (
	"context"
	"log/slog"
	"testing"
)

func Test_New_HonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	log := New()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("LOG_LEVEL=debug should enable debug logging")
	}
	// New installs the configured logger as the process default.
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("slog.Default() should carry the configured level")
	}
}

func Test_New_DefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := New()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled by default")
	}
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled by default")
	}
}

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func Test_FromContext_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}

	logger := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext should return the logger stored in the context")
	}
}
