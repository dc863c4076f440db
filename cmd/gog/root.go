package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gog",
		Short: "gog is a token session service",
		Long: `gog issues opaque session tokens, resolves them back to an identity and
expires them after a sliding period of inactivity.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
