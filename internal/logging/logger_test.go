package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONL(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)

	runtime, err := New()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(stateDir, "anbu", "log.jsonl"), runtime.Path)

	runtime.Logger.Info("session start", "session_id", "s-1")
	require.NoError(t, runtime.Close())

	data, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	require.Equal(t, "session start", record["msg"])
	require.Equal(t, "s-1", record["session_id"])
}

func TestLevelFromEnv(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"junk":  slog.LevelInfo,
	}
	for value, want := range cases {
		t.Setenv("ANBU_LOG_LEVEL", value)
		require.Equal(t, want, levelFromEnv(), value)
	}
}

func TestResolveLogPathFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")

	path, err := resolveLogPath()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "anbu", "log.jsonl"), path)
}
