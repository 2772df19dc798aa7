package daemon

import (
	"os/exec"

	"golang.org/x/xerrors"
)

// Spawn starts exe with args detached from the calling terminal and returns
// its pid. The child's standard streams are connected to the null device.
func Spawn(exe string, args ...string) (int, error) {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return 0, xerrors.Errorf("start %s: %w", exe, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, xerrors.Errorf("release pid %d: %w", pid, err)
	}
	return pid, nil
}
