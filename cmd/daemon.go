package cmd

import (
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/collector"
	"github.com/fakeyudi/dwell/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Record activity in the foreground until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		probe, err := collector.NewPlatformProbe()
		if err != nil {
			return err
		}
		if c, ok := probe.(io.Closer); ok {
			defer c.Close()
		}

		states, err := daemon.NewStateStore(cfg.DataDir)
		if err != nil {
			return err
		}
		exe, err := executablePath()
		if err != nil {
			return err
		}
		return daemon.Run(ctx, log, quartz.NewReal(), probe, states, daemon.Options{
			DataDir:      cfg.DataDir,
			Executable:   exe,
			Interval:     cfg.CollectionInterval.Std(),
			AFKThreshold: cfg.AFKThreshold.Std(),
			QueueSize:    cfg.QueueSize,
			LockTimeout:  cfg.LockTimeout.Std(),
		})
	},
}

// executablePath is the resolved path of the running binary; daemons are
// matched on it.
var executablePath = func() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}

// isDaemonInvocation reports whether a command line runs the daemon
// subcommand. args[0] is the program.
func isDaemonInvocation(args []string) bool {
	if len(args) < 2 {
		return false
	}
	c, _, err := rootCmd.Find(args[1:])
	return err == nil && c == daemonCmd
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
