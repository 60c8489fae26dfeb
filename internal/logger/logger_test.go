package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// TestHandlerFiltersLevel tests that records below the level are dropped.
func TestHandlerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	log.Debug("hidden")
	log.Info("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written: %q", out)
	}

	if !strings.Contains(out, "[INF] shown k=1") {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestHandlerWithAttrsAndGroup tests bound attributes and group prefixes.
func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug)).With("run", "r1").WithGroup("fold")

	log.Warn("combine", "layer", 2)

	out := buf.String()
	if !strings.Contains(out, "[WRN] combine run=r1 fold.layer=2") {
		t.Errorf("unexpected output: %q", out)
	}
}

// TestParseLevel tests flag level parsing.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}

		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestEnabled tests the level gate.
func TestEnabled(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, slog.LevelWarn)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}

	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
