package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"cdr.dev/slog"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/dwell/internal/config"
	"github.com/fakeyudi/dwell/internal/logging"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// log is the command logger, populated in PersistentPreRunE.
var (
	log      slog.Logger
	closeLog func()
)

var (
	configPath string
	dataDir    string
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:          "dwell",
	Short:        "Record which windows you use and report where the time went",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First run: no global config yet → offer the setup wizard.
		// Only do this when stdin is an interactive terminal.
		if _, err := os.Stat(config.GlobalPath()); errors.Is(err, os.ErrNotExist) && interactive(cmd) && cmd.Name() != daemonCmd.Name() {
			cmd.Println()
			cmd.Println("  Welcome to dwell! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		var override *config.Config
		if configPath != "" {
			override, err = config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("loading %s: %w", configPath, err)
			}
		}
		cfg = config.Merge(global, override)
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		prefix := "cli"
		if cmd.Name() == daemonCmd.Name() {
			prefix = "daemon"
		}
		var console io.Writer
		if logConsole {
			console = cmd.ErrOrStderr()
		}
		if closeLog != nil {
			closeLog()
		}
		log, closeLog, err = logging.New(logging.Options{
			Dir:     cfg.DataDir,
			Prefix:  prefix,
			Console: console,
			Level:   cfg.LogLevel,
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file merged over the global one")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "data directory (overrides data_dir)")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "also write logs to stderr")
}

// interactive reports whether cmd reads from a terminal.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	err := rootCmd.Execute()
	if closeLog != nil {
		closeLog()
	}
	if err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}
