package cmd

import (
	"context"
	"fmt"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/daemon"
)

// processControl finds and stops daemons running from a given executable.
type processControl interface {
	Find(ctx context.Context, exe string, match func(args []string) bool) ([]*process.Process, error)
	Terminate(ctx context.Context, procs []*process.Process) error
}

var (
	newProcessControl = func() processControl {
		return daemon.NewProcesses(log, quartz.NewReal(), daemon.DefaultStopTimeout)
	}
	spawnDaemon = daemon.Spawn
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the recording daemon in the background, replacing any running one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		exe, err := executablePath()
		if err != nil {
			return err
		}

		stopped, err := stopDaemons(ctx, exe)
		if err != nil {
			return err
		}
		if stopped > 0 {
			cmd.Printf("Stopped %d running daemon(s).\n", stopped)
		}

		pid, err := spawnDaemon(exe, daemonArgs()...)
		if err != nil {
			return fmt.Errorf("starting daemon: %w", err)
		}
		log.Info(ctx, "daemon started", slog.F("pid", pid), slog.F("exe", exe))
		cmd.Printf("Daemon started (pid %d).\n", pid)
		return nil
	},
}

// stopDaemons terminates every daemon running from exe and returns how many
// there were. Other commands sharing the binary, such as a following
// timeline, are left alone.
func stopDaemons(ctx context.Context, exe string) (int, error) {
	pc := newProcessControl()
	procs, err := pc.Find(ctx, exe, isDaemonInvocation)
	if err != nil {
		return 0, fmt.Errorf("listing daemons: %w", err)
	}
	if len(procs) == 0 {
		return 0, nil
	}
	if err := pc.Terminate(ctx, procs); err != nil {
		return 0, fmt.Errorf("stopping daemons: %w", err)
	}
	return len(procs), nil
}

// daemonArgs passes the flags that pick configuration on to the daemon.
func daemonArgs() []string {
	args := []string{daemonCmd.Name()}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if dataDir != "" {
		args = append(args, "--dir", dataDir)
	}
	return args
}

func init() {
	rootCmd.AddCommand(startCmd)
}
