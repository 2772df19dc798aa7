package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/dwell/internal/daemon"
)

func TestStatusNotRunning(t *testing.T) {
	dir, _ := setupTest(t)
	seedRecords(t, dir, morning...)

	out, err := executeCommand(rootCmd, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running.")
	assert.Contains(t, out, "Today:    3 intervals, 55m0s tracked")
}

func TestStatusRunning(t *testing.T) {
	dir, _ := setupTest(t)
	pidAlive = func(_ context.Context, pid int) bool { return pid == 4242 }

	id := uuid.New()
	states, err := daemon.NewStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, states.Save(&daemon.State{ID: id, PID: 4242, StartTime: testNow.Add(-90 * time.Minute), DataDir: dir}))

	out, err := executeCommand(rootCmd, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon:   running (pid 4242)")
	assert.Contains(t, out, "ID:       "+id.String())
	assert.Contains(t, out, "Uptime:   1h30m0s")
	assert.Contains(t, out, "Today:    0 intervals, 0s tracked")
}

func TestStatusStaleState(t *testing.T) {
	dir, _ := setupTest(t)

	states, err := daemon.NewStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, states.Save(&daemon.State{ID: uuid.New(), PID: 77, StartTime: testNow, DataDir: dir}))

	out, err := executeCommand(rootCmd, "status", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running (stale state from pid 77).")
}
