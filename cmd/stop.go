package cmd

import (
	"errors"

	"cdr.dev/slog"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the recording daemon",
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

		// A daemon killed outright leaves its state file behind.
		states, err := daemon.NewStateStore(cfg.DataDir)
		if err != nil {
			return err
		}
		if st, err := states.Load(); err == nil {
			if err := states.Delete(st.ID); err != nil {
				log.Warn(ctx, "removing daemon state", slog.Error(err))
			}
		} else if !errors.Is(err, daemon.ErrNotRunning) {
			log.Warn(ctx, "reading daemon state", slog.Error(err))
		}

		if stopped == 0 {
			cmd.Println("No running daemon.")
			return nil
		}
		log.Info(ctx, "daemons stopped", slog.F("count", stopped))
		cmd.Printf("Stopped %d daemon(s).\n", stopped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
