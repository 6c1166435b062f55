package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			level, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("resolver").With("snapshot", 3).
		Error(context.Background(), errors.New("boom"), "resolve failed", "path", "/blog")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolve failed", entry["msg"])
	assert.Equal(t, "resolver", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "/blog", entry["path"])
	assert.EqualValues(t, 3, entry["snapshot"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	_ = parent.With("request_id", "abc")

	parent.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "request_id")

	buf.Reset()
	WithRequestID(parent, "abc").Info(context.Background(), "tagged")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	op := StartOperation(logger, "urlmap.build")
	op.End(context.Background(), "routes", 4)

	out := buf.String()
	assert.Contains(t, out, "operation=urlmap.build")
	assert.Contains(t, out, "duration_ms=")
	assert.Contains(t, out, "routes=4")
	assert.True(t, op.Elapsed() >= 0)

	buf.Reset()
	StartOperation(logger, "export").EndWithError(context.Background(), errors.New("disk full"))
	assert.True(t, strings.Contains(buf.String(), "disk full"))
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "ignored")
		logger.With("a", 1).WithComponent("c").Info(context.Background(), "ignored")
	})
}
