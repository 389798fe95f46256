package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		enable   slog.Level
		disabled slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"warn level", "warn", slog.LevelWarn, slog.LevelInfo},
		{"error level", "ERROR", slog.LevelError, slog.LevelWarn},
		{"default info", "", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
			if logger.Enabled(ctx, tt.disabled) {
				t.Fatalf("expected level %s to be disabled", tt.disabled)
			}
		})
	}
}

func TestRedactedNeverWritesSecret(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info("tenant loaded", Redacted("api_key", "super-secret-value"))

	out := buf.String()
	if strings.Contains(out, "super-secret-value") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, `"api_key_length":18`) {
		t.Fatalf("expected length attribute, got %s", out)
	}
}

func TestWithKeepsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug").With("tenant_id", "30747815000108")

	logger.Debug("resolved")

	if !strings.Contains(buf.String(), `"tenant_id":"30747815000108"`) {
		t.Fatalf("expected tenant_id attribute, got %s", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("  short  ", 10); got != "short" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := Truncate(strings.Repeat("x", 20), 5); got != "xxxxx..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
