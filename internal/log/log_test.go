package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentEngine, Output: &buf})

	logger.DebugContext(context.Background(), "Reconciled record", "user_id", "u1")
	logger.WithComponent(ComponentWorker).Info("Started")

	out := buf.String()
	for _, want := range []string{"component=engine", "user_id=u1", "component=worker"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Component: ComponentApp, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	logger := New(Config{Component: ComponentCLI, Output: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	SetDefault(New(Config{Level: slog.LevelInfo, Output: &buf}))
	t.Cleanup(func() { slog.SetDefault(prev) })

	FromContext(context.Background()).WithComponent(ComponentStorage).Info("Deleted all user data")

	if out := buf.String(); !strings.Contains(out, "component=storage") {
		t.Errorf("output = %s", out)
	}
}
