package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/topograph/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "topograph",
	Short: "Topograph keeps TV signal-chain diagrams canonical",
	Long: `Topograph normalizes, validates and serves the topology diagrams of TV channels:
devices wired by directed edges that attach to named ports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults to $TOPOGRAPH_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config)")
}

// commandLogger builds the logger from flags, falling back to the given defaults.
func commandLogger(cmd *cobra.Command, level, format string) *slog.Logger {
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		format = v
	}
	return logging.NewWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), format)
}
