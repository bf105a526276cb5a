package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/topograph/pkg/diagram"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "Print the canonical form of a diagram",
	Long: `Reads a diagram in the loose editor shape (JSON or YAML, "-" for stdin), then
canonicalizes it, allocates ports and applies the edge rules exactly as a save would.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readDiagram(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		ch, report := diagram.Prepare(raw)
		if !report.Clean() {
			logger := commandLogger(cmd, "info", "text")
			logger.Warn("Diagram entries were discarded or repaired",
				"dropped_nodes", report.DroppedNodes,
				"dropped_edges", report.DroppedEdges,
				"duplicate_nodes", report.DuplicateNodes,
				"duplicate_edges", report.DuplicateEdges,
				"unresolved_edges", report.UnresolvedEdges,
				"case_resolved", report.CaseResolved)
		}

		format, _ := cmd.Flags().GetString("output")
		if withReport, _ := cmd.Flags().GetBool("report"); withReport {
			return writeValue(cmd.OutOrStdout(), map[string]any{"channel": ch, "report": report}, format)
		}
		return writeValue(cmd.OutOrStdout(), ch, format)
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
	normalizeCmd.Flags().Bool("report", false, "Wrap the output with the normalization report")
}
