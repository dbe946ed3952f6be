package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelWarn, Format: "text", Output: &buf})

	l.Info("crew.kickoff.start")
	l.Warn("crew.task.slow", "task", "research")

	out := buf.String()
	assert.NotContains(t, out, "crew.kickoff.start")
	assert.Contains(t, out, "crew.task.slow")
	assert.Contains(t, out, "task=research")
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelDebug, Format: "json", Output: &buf, Component: "runner"})

	l.Debug("runner.event.delivered", "event_id", "e1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "runner.event.delivered", rec["msg"])
	assert.Equal(t, "runner", rec["component"])
	assert.Equal(t, "e1", rec["event_id"])
}

func TestNew_Zap(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LogLevelInfo, Format: "zap", Output: &buf})

	l.Debug("hidden")
	l.Info("tool.call.success", "tool", "search_internet")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tool.call.success", rec["msg"])
	assert.Equal(t, "search_internet", rec["tool"])
	assert.Equal(t, "info", rec["level"])
}

func TestWith_NoOpPassThrough(t *testing.T) {
	l := With(NoOpLogger{}, "k", "v")
	assert.Equal(t, NoOpLogger{}, l)
}
