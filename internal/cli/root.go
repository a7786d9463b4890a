// Package cli implements the sourceproof command line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sourceproof/internal/config"
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "sourceproof",
		Short:   "Bytecode source verification for on-chain packages",
		Long:    `Sourceproof checks that the bytecode published at an on-chain address is byte-for-byte reproducible from locally compiled source.`,
		Version: version,
	}

	rootCmd.AddCommand(createServeCmd(version))
	rootCmd.AddCommand(createVerifyCmd())

	return rootCmd.Execute()
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
