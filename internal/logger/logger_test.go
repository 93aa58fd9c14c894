package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.Info("competition finalized", "competition_id", "cmp-1")

	assert.Contains(t, buf.String(), `"msg":"competition finalized"`)
	assert.Contains(t, buf.String(), `"competition_id":"cmp-1"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses pretty", environment: "development", wantJSON: false},
		{name: "staging uses pretty", environment: "staging", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			log.Info("hello")

			out := strings.TrimSpace(buf.String())
			require.NotEmpty(t, out)
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(out, "{"))
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Format: "pretty", Writer: &buf})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "WRN")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestPrettyHandler_Attributes(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(h).With("job", "finalize")

	log.Debug("run complete",
		"took", 1500*time.Millisecond,
		slog.Group("stats", slog.Int("completed", 3), slog.Int("failed", 1)),
		"note", "two words",
	)

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "run complete")
	assert.Contains(t, out, "job=finalize")
	assert.Contains(t, out, "took=1.5s")
	assert.Contains(t, out, "stats.completed=3")
	assert.Contains(t, out, "stats.failed=1")
	assert.Contains(t, out, `note="two words"`)
}

func TestPrettyHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("duel")

	log.Info("accepted", "id", "duel-1")

	assert.Contains(t, buf.String(), "duel.id=duel-1")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.Component("matchmaking").Info("paired", "group_id", "grp-1")

	out := buf.String()
	assert.Contains(t, out, `"component":"matchmaking"`)
	assert.Contains(t, out, `"group_id":"grp-1"`)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	scoped := New(Config{Format: "json", Writer: &buf}).With("request_id", "req-7")

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx, fallback).Info("workout logged")
	assert.Contains(t, buf.String(), `"request_id":"req-7"`)
}

func TestPrettyHandler_ComponentTag(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "pretty", Writer: &buf})

	log.Component("jobs").Info("run finished", "job", "finalize")

	out := buf.String()
	assert.Contains(t, out, "[jobs]")
	assert.Contains(t, out, "job=finalize")
	assert.NotContains(t, out, "component=")
	assert.Less(t, strings.Index(out, "[jobs]"), strings.Index(out, "run finished"))
}
