package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure dwell (re-run anytime to edit settings)",
	// Bypass the normal PersistentPreRunE so setup works before a config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, false)
	},
}

// runSetup runs the interactive setup wizard and saves the result as the
// global config. If firstRun is true, a closing hint is shown.
func runSetup(cmd *cobra.Command, firstRun bool) error {
	existing, err := config.LoadGlobal()
	if err != nil {
		// A broken config file should not block rewriting it.
		existing = nil
	}

	c, err := config.RunSetup(existing, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := config.Save(config.GlobalPath(), c); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  ✓ Config saved to %s\n", config.GlobalPath())

	if firstRun {
		fmt.Fprintln(cmd.OutOrStdout(), "  Setup complete. Run 'dwell start' to begin recording.")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
