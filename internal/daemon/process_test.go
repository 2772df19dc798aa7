//go:build linux

package daemon_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/dwell/internal/daemon"
)

func lookSleep(t *testing.T) string {
	t.Helper()
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	sleep, err = filepath.EvalSymlinks(sleep)
	require.NoError(t, err)
	return sleep
}

// argIs matches command lines whose first argument is arg.
func argIs(arg string) func([]string) bool {
	return func(args []string) bool {
		return len(args) > 1 && args[1] == arg
	}
}

func pidsOf(procs []*process.Process) []int32 {
	var pids []int32
	for _, p := range procs {
		pids = append(pids, p.Pid)
	}
	return pids
}

func TestFindMatchesCommandLine(t *testing.T) {
	t.Parallel()

	sleep := lookSleep(t)
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	// Both sleeps run the same binary; only one has the wanted argument.
	// They are children of sh, not of the test.
	cmd := exec.Command(sh, "-c", sleep+" 6101 & "+sleep+" 6109 & wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		_ = cmd.Wait()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	procs := daemon.NewProcesses(slogtest.Make(t, nil), quartz.NewReal(), time.Second)
	var found []*process.Process
	require.Eventually(t, func() bool {
		found, err = procs.Find(ctx, sleep, argIs("6101"))
		return err == nil && len(found) == 1
	}, 5*time.Second, 20*time.Millisecond)

	args, err := found[0].CmdlineSliceWithContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6101", args[1])

	require.NoError(t, procs.Terminate(ctx, found))
	running, _ := found[0].IsRunningWithContext(ctx)
	assert.False(t, running)

	// The other sleep is untouched.
	others, err := procs.Find(ctx, sleep, argIs("6109"))
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestFindSkipsOwnChildren(t *testing.T) {
	t.Parallel()

	sleep := lookSleep(t)
	cmd := exec.Command(sleep, "6102")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	procs := daemon.NewProcesses(slogtest.Make(t, nil), quartz.NewReal(), 0)
	found, err := procs.Find(context.Background(), sleep, func([]string) bool { return true })
	require.NoError(t, err)
	assert.False(t, slices.Contains(pidsOf(found), int32(cmd.Process.Pid)))
}

func TestFindNothing(t *testing.T) {
	t.Parallel()

	procs := daemon.NewProcesses(slogtest.Make(t, nil), quartz.NewReal(), 0)
	found, err := procs.Find(context.Background(), filepath.Join(t.TempDir(), "no-such-daemon"), argIs("daemon"))
	require.NoError(t, err)
	assert.Empty(t, found)
}
