package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/topograph"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of topograph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "topograph version %s\n", strings.TrimSpace(topograph.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
