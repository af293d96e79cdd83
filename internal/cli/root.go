// Package cli defines the ofs111 command tree: one-shot index, run, and chop
// commands plus the long-running serve daemon.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/observability"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	logLevel  string
	logFormat string
)

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ofs111",
		Short:         "Convert NOS OFS surface current forecasts to S-111",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newIndexCmd(),
		newRunCmd(),
		newChopCmd(),
		newServeCmd(),
		newModelsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newLogger() *slog.Logger {
	return observability.NewLogger(logLevel, logFormat)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ofs111 version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ofs111", Version)
		},
	}
}
