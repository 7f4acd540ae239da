// Package cli implements the conductor command line interface.
package cli

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entireio/conductor/cmd/conductor/cli/logging"
)

var logLevelFlag string

// GetLogLevel returns the active log level from the --log-level flag.
func GetLogLevel() slog.Level {
	switch strings.ToLower(logLevelFlag) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewRootCmd builds the conductor root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "Run and orchestrate AI coding agent CLIs",
		Long: "Conductor spawns AI coding agent CLIs (Claude Code, Gemini CLI, OpenCode) " +
			"or a bare terminal, parses their streaming output, and reports usage, " +
			"errors, and results as a uniform event stream.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.SetLogLevelGetter(GetLogLevel)
			// Init failure leaves the stderr fallback active; a missing
			// cache dir must not block a run.
			_ = logging.Init(cmd.Context(), "")
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			logging.Close()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info",
		"log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newAgentsCmd())

	return rootCmd
}
