package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log, closeLog, err := New(Options{Dir: dir, Prefix: "daemon", Console: &console, Level: "info"})
	require.NoError(t, err)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "collector started", slog.F("interval", "1s"))
	closeLog()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "daemon.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "collector started")
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, console.String(), "collector started")
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	dir := t.TempDir()
	log, closeLog, err := New(Options{Dir: dir, Prefix: "cli"})
	require.NoError(t, err)
	closeLog()

	log.Info(context.Background(), "late")
	data, err := os.ReadFile(filepath.Join(dir, "logs", "cli.log"))
	if err == nil {
		assert.NotContains(t, string(data), "late")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("chatty")
	assert.Error(t, err)
	_, _, err = New(Options{Level: "chatty"})
	assert.Error(t, err)
}
