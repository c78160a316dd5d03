package logging_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/pkg/logging"
)

func restoreGlobalLevel(t *testing.T) {
	previous := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := logging.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  logging.Config
		want    []string
		notWant []string
	}{
		{
			name:   "debug json adds caller",
			config: logging.Config{Level: "debug", Format: "json"},
			want:   []string{`"level":"debug"`, `"caller":`},
		},
		{
			name:    "error level drops info",
			config:  logging.Config{Level: "error", Format: "json"},
			want:    []string{`"level":"error"`},
			notWant: []string{`"level":"info"`},
		},
		{
			name:   "default fields",
			config: logging.Config{Level: "info", Format: "json", Fields: map[string]any{"app": "stagehand", "pid": 7}},
			want:   []string{`"app":"stagehand"`, `"pid":7`},
		},
		{
			name:   "console without color",
			config: logging.Config{Level: "info", Format: "console", NoColor: true},
			want:   []string{"INF", "info message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobalLevel(t)
			var buf bytes.Buffer
			tt.config.Writer = &buf

			logger := logging.NewLoggerFromConfig(&tt.config)
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Error().Msg("error message")

			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestAutoFormatIsJSONOffTerminal(t *testing.T) {
	restoreGlobalLevel(t)
	var buf bytes.Buffer
	logger := logging.NewLoggerFromConfig(&logging.Config{Level: "info", Format: "auto", Writer: &buf})
	logger.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestContextFields(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithSession(ctx, "po-42")
	ctx = logging.WithEndpoint(ctx, "https://api.example.com/orders")
	ctx = logging.WithFields(ctx, map[string]any{"changes": 3, "error": errors.New("boom")})

	logging.FromContext(ctx).Info().Msg("submitting")

	entries := tl.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d:\n%s", len(entries), tl.Output())
	}
	entry := entries[0]
	if entry["session"] != "po-42" {
		t.Errorf("session = %v", entry["session"])
	}
	if entry["endpoint"] != "https://api.example.com/orders" {
		t.Errorf("endpoint = %v", entry["endpoint"])
	}
	if entry["changes"] != float64(3) {
		t.Errorf("changes = %v", entry["changes"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("expected the default logger for a bare context")
	}
	if logging.FromContext(logging.WithLogger(context.Background(), nil)) != logging.Default() {
		t.Error("expected the default logger when nil was stored")
	}
}

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	var buf bytes.Buffer
	logging.SetDefault(zerolog.New(&buf))
	logging.Default().Warn().Msg("replaced")
	if !strings.Contains(buf.String(), "replaced") {
		t.Errorf("default logger not replaced: %q", buf.String())
	}
}
