package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/xerrors"
)

// DefaultStopTimeout is how long Terminate waits after SIGTERM before
// killing a process.
const DefaultStopTimeout = 5 * time.Second

const pollInterval = 100 * time.Millisecond

// Processes finds and stops daemons by executable path and command line.
type Processes struct {
	log     slog.Logger
	clock   quartz.Clock
	timeout time.Duration
}

// NewProcesses returns a Processes that waits up to timeout for a
// terminated process to exit before killing it.
func NewProcesses(log slog.Logger, clock quartz.Clock, timeout time.Duration) *Processes {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	return &Processes{log: log.Named("process"), clock: clock, timeout: timeout}
}

// Find returns the processes running exe whose command line satisfies match.
// The caller and its direct children are never returned, so a command can
// share its binary with the daemons it looks for. Processes that vanish or
// cannot be inspected while scanning are skipped.
func (p *Processes) Find(ctx context.Context, exe string, match func(args []string) bool) ([]*process.Process, error) {
	want := canonical(exe)
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, xerrors.Errorf("list processes: %w", err)
	}
	self := int32(os.Getpid())

	var found []*process.Process
	for _, proc := range procs {
		if proc.Pid == self {
			continue
		}
		path, err := proc.ExeWithContext(ctx)
		if err != nil || path == "" || canonical(path) != want {
			continue
		}
		if ppid, err := proc.PpidWithContext(ctx); err != nil || ppid == self {
			continue
		}
		args, err := proc.CmdlineSliceWithContext(ctx)
		if err != nil || !match(args) {
			continue
		}
		found = append(found, proc)
	}
	return found, nil
}

// Terminate asks each process to exit and kills the ones still running
// after the timeout. It returns once all of them are gone.
func (p *Processes) Terminate(ctx context.Context, procs []*process.Process) error {
	var errs []error
	for _, proc := range procs {
		p.log.Info(ctx, "stopping daemon", slog.F("pid", proc.Pid))
		if err := p.terminate(ctx, proc); err != nil {
			errs = append(errs, xerrors.Errorf("stop pid %d: %w", proc.Pid, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Processes) terminate(ctx context.Context, proc *process.Process) error {
	if err := proc.TerminateWithContext(ctx); err != nil {
		// No signals on Windows; fall back to a forced kill.
		if kerr := proc.KillWithContext(ctx); kerr != nil {
			return gone(ctx, proc, kerr)
		}
	}
	if p.waitExit(ctx, proc) {
		return nil
	}
	p.log.Warn(ctx, "daemon ignored SIGTERM, killing", slog.F("pid", proc.Pid), slog.F("timeout", p.timeout))
	if err := proc.KillWithContext(ctx); err != nil {
		return gone(ctx, proc, err)
	}
	if !p.waitExit(ctx, proc) {
		return xerrors.New("process survived kill")
	}
	return nil
}

// waitExit polls until proc has exited or the timeout passes.
func (p *Processes) waitExit(ctx context.Context, proc *process.Process) bool {
	timer := p.clock.NewTimer(p.timeout, "process", "timeout")
	defer timer.Stop()
	ticker := p.clock.NewTicker(pollInterval, "process", "poll")
	defer ticker.Stop()
	for {
		if running, err := proc.IsRunningWithContext(ctx); err != nil || !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return false
		case <-ticker.C:
		}
	}
}

// gone treats a signalling failure on an already exited process as success.
func gone(ctx context.Context, proc *process.Process, err error) error {
	if running, rerr := proc.IsRunningWithContext(ctx); rerr == nil && !running {
		return nil
	}
	return err
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return filepath.Clean(path)
}
