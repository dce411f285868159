package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/phenomenon0/tennis-edge/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := Setup(config.LoggingConfig{Level: "warn", Format: "json", Service: "tennis-edge"}, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("hidden")
	logger.Warn("dropping row", "line", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["service"] != "tennis-edge" || rec["msg"] != "dropping row" || rec["line"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetupText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	if _, err := Setup(config.LoggingConfig{Level: "debug"}, &buf); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	slog.Debug("via default", "k", "v")
	if !strings.Contains(buf.String(), "msg=\"via default\" k=v") {
		t.Errorf("default logger not installed: %q", buf.String())
	}
}

func TestSetupErrors(t *testing.T) {
	if _, err := Setup(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := Setup(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
