package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	defer func() { os.Stdout = orig }()

	r, w, err := os.Pipe()
	require.NoError(t, err, "failed to create stdout pipe")

	os.Stdout = w
	fn()

	err = w.Close()
	require.NoError(t, err, "failed to close stdout pipe")

	out, err := io.ReadAll(r)
	require.NoError(t, err, "failed to read stdout pipe")

	return string(out)
}

func TestLogger_parseLevel(t *testing.T) {
	t.Run("valid value", func(t *testing.T) {
		tests := []struct {
			name     string
			input    string
			expected slog.Level
		}{
			{"Debug level", "DEBUG", slog.LevelDebug},
			{"Debug level lowercase", "debug", slog.LevelDebug},
			{"Info level", "INFO", slog.LevelInfo},
			{"Info level lowercase", "info", slog.LevelInfo},
			{"Warn level", "WARN", slog.LevelWarn},
			{"Warn level lowercase", "warn", slog.LevelWarn},
			{"Error level", "ERROR", slog.LevelError},
			{"Error level lowercase", "error", slog.LevelError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := parseLevel(tt.input)

				require.NoError(t, err, "parseLevel(%q) should not return an error", tt.input)
				require.Equal(t, tt.expected, got, "parseLevel(%q) should return %v", tt.input, tt.expected)
			})
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := parseLevel("nonsense")

		require.Error(t, err, "unknown level must be rejected")
	})
}

func TestLogger_New(t *testing.T) {
	t.Run("production logs json", func(t *testing.T) {
		l, err := New(EnvProduction, LevelInfo)
		require.NoError(t, err)

		out := captureStdout(t, func() {
			l.Info("hello", "key", "value")
		})

		var record map[string]any
		err = json.Unmarshal([]byte(out), &record)
		require.NoError(t, err, "production output should be JSON")
		require.Equal(t, "hello", record["msg"])
		require.Equal(t, "value", record["key"])
	})

	t.Run("dev logs text", func(t *testing.T) {
		l, err := New(EnvDevelopment, LevelInfo)
		require.NoError(t, err)

		out := captureStdout(t, func() {
			l.Info("hello")
		})

		require.Contains(t, out, "msg=hello")
	})

	t.Run("unknown environment fail", func(t *testing.T) {
		_, err := New("staging", LevelInfo)

		require.Error(t, err)
	})

	t.Run("level filters lower records", func(t *testing.T) {
		l, err := New(EnvDevelopment, LevelError)
		require.NoError(t, err)

		out := captureStdout(t, func() {
			l.Debug("quiet")
			l.Info("quiet")
			l.Error("loud")
		})

		require.NotContains(t, out, "quiet")
		require.Contains(t, out, "loud")
	})
}
