package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/daemon"
	"github.com/fakeyudi/dwell/internal/record"
	"github.com/fakeyudi/dwell/internal/report"
)

var pidAlive = func(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is recording and what it recorded today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		states, err := daemon.NewStateStore(cfg.DataDir)
		if err != nil {
			return err
		}

		st, err := states.Load()
		switch {
		case errors.Is(err, daemon.ErrNotRunning):
			cmd.Println("Daemon is not running.")
		case err != nil:
			return err
		case !pidAlive(ctx, st.PID):
			cmd.Printf("Daemon is not running (stale state from pid %d).\n", st.PID)
		default:
			cmd.Printf("Daemon:   running (pid %d)\n", st.PID)
			cmd.Printf("ID:       %s\n", st.ID)
			cmd.Printf("Started:  %s\n", st.StartTime.Local().Format(time.RFC3339))
			cmd.Printf("Uptime:   %s\n", report.FormatDuration(now().Sub(st.StartTime).Truncate(time.Second)))
		}

		store, err := record.NewStore(log, cfg.DataDir, cfg.LockTimeout.Std())
		if err != nil {
			return err
		}
		today, err := store.ReadAll(ctx, record.DayOf(now()))
		if err != nil {
			return err
		}
		var tracked time.Duration
		for _, iv := range today {
			tracked += iv.Duration
		}
		cmd.Printf("Data:     %s\n", store.Dir())
		cmd.Printf("Today:    %d intervals, %s tracked\n", len(today), report.FormatDuration(tracked))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
