package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the dungeon-engine command tree
func NewRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "dungeon-engine",
		Short:         "Dungeon instance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return err
			}
			setupLogger(level)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level for commands other than serve (debug, info, warn, error)")

	root.AddCommand(
		ServeCommand(),
		MigrateCommand(),
		CatalogCommand(),
		SimulateCommand(),
	)

	return root
}

func setupLogger(level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
