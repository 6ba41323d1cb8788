package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelInfo, "INFO"},
		{slog.LevelWarn, "WARNING"},
		{slog.LevelError, "ERROR"},
	}

	for _, tt := range tests {
		if got := LevelName(tt.level); got != tt.want {
			t.Errorf("LevelName(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	root := New(config.LoggingConfig{Level: "info", Format: "text"}, "test")
	derived := root.With("component", "scheduler")

	if derived.Level() != slog.LevelInfo {
		t.Fatalf("initial level = %v, want info", derived.Level())
	}

	root.SetLevel(slog.LevelDebug)

	if derived.Level() != slog.LevelDebug {
		t.Errorf("derived level = %v after SetLevel, want debug", derived.Level())
	}
	if root.Level() != slog.LevelDebug {
		t.Errorf("root level = %v after SetLevel, want debug", root.Level())
	}
}

func TestDefault(t *testing.T) {
	log := Default()
	if log == nil {
		t.Fatal("Default() returned nil")
	}
	if log.Level() != slog.LevelInfo {
		t.Errorf("Default() level = %v, want info", log.Level())
	}
}
