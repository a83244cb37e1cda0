package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"Error", ERROR},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLogLevel(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("WARN", &buf).WithFields(String("component", "reader"))

	logger.Info("hidden")
	logger.Warn("shown", Int("rows", 3), String("password", "hunter2"), String("DSN", "postgres://u:p@h/db"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["level"] != "WARN" || entry["message"] != "shown" || entry["component"] != "reader" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["password"] != "[REDACTED]" || entry["DSN"] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", entry)
	}
	if entry["rows"] != float64(3) {
		t.Errorf("unexpected rows %v", entry["rows"])
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogLogger(base).WithFields(String("trace_id", "abc"))

	logger.Debug("statement", String("token", "secret-value"), Bool("success", true))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["msg"] != "statement" || entry["trace_id"] != "abc" || entry["success"] != true {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["token"] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", entry["token"])
	}
}

func TestTraceIDField(t *testing.T) {
	if f := TraceIDField(context.Background()); f.Value != "unknown" {
		t.Errorf("expected unknown, got %v", f.Value)
	}

	ctx := WithTraceID(context.Background(), "t-1")
	if f := TraceIDField(ctx); f.Key != "trace_id" || f.Value != "t-1" {
		t.Errorf("unexpected field %+v", f)
	}
}

func TestNoopLogger(t *testing.T) {
	logger := NewNoopLogger()
	logger.Error("ignored")
	if logger.WithFields(String("a", "b")) != logger {
		t.Error("expected the same noop logger")
	}
}
