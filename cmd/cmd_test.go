package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/dwell/internal/activity"
	"github.com/fakeyudi/dwell/internal/record"
)

var testNow = time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags puts every flag back to its default so one test's flags do not
// leak into the next run of rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// fakeProcesses stands in for daemon.Processes.
type fakeProcesses struct {
	found      []*process.Process
	terminated []*process.Process
	match      func(args []string) bool
}

func (f *fakeProcesses) Find(_ context.Context, _ string, match func(args []string) bool) ([]*process.Process, error) {
	f.match = match
	return f.found, nil
}

func (f *fakeProcesses) Terminate(_ context.Context, procs []*process.Process) error {
	f.terminated = append(f.terminated, procs...)
	return nil
}

// setupTest isolates XDG directories, pins the clock to testNow in UTC and
// stubs out process control. It returns a fresh data directory.
func setupTest(t *testing.T) (string, *fakeProcesses) {
	t.Helper()

	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	xdg.Reload()
	resetFlags(rootCmd)

	dir := t.TempDir()
	procs := &fakeProcesses{}

	origNow, origLoc := now, location
	origExe, origControl, origSpawn, origAlive := executablePath, newProcessControl, spawnDaemon, pidAlive
	now = func() time.Time { return testNow }
	location = time.UTC
	executablePath = func() (string, error) { return "/opt/dwell/dwell", nil }
	newProcessControl = func() processControl { return procs }
	spawnDaemon = func(string, ...string) (int, error) {
		t.Fatal("unexpected spawn")
		return 0, nil
	}
	pidAlive = func(context.Context, int) bool { return false }

	t.Cleanup(func() {
		now, location = origNow, origLoc
		executablePath, newProcessControl, spawnDaemon, pidAlive = origExe, origControl, origSpawn, origAlive
		if closeLog != nil {
			closeLog()
			closeLog = nil
		}
	})
	return dir, procs
}

// seedRecords writes intervals straight into their day file.
func seedRecords(t *testing.T, dir string, intervals ...activity.Interval) {
	t.Helper()
	var buf bytes.Buffer
	for _, iv := range intervals {
		line, err := json.Marshal(iv)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	path := filepath.Join(dir, record.FileName(intervals[0].Start))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func at(hour, min int) time.Time {
	return time.Date(2024, 4, 5, hour, min, 0, 0, time.UTC)
}

// morning is 40 minutes of work between 10:00 and 11:00 and 15 after.
var morning = []activity.Interval{
	{ProcessName: "/usr/bin/code", WindowName: "main.go", Start: at(10, 0), Duration: 30 * time.Minute},
	{ProcessName: "/usr/lib/firefox/firefox", WindowName: "docs", Start: at(10, 30), Duration: 10 * time.Minute},
	{ProcessName: "/usr/bin/code", WindowName: "main.go", Start: at(11, 0), Duration: 15 * time.Minute},
}
