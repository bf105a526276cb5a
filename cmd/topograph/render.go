package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/topograph/internal/presentation/graph"
	"github.com/aretw0/topograph/internal/validator"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Export the diagram as a Mermaid flowchart",
	Long:  `Normalizes the diagram and outputs a Mermaid flowchart (graph LR) of the signal chain.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readDiagram(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		ch, err := validator.ValidateDiagram(raw)
		var overlay *graph.Overlay
		if highlight, _ := cmd.Flags().GetBool("highlight"); highlight {
			overlay = &graph.Overlay{}
			var verr *validator.Error
			if errors.As(err, &verr) {
				overlay.Problems = verr.Subjects()
			}
		}
		if overlay != nil {
			overlay.Focus, _ = cmd.Flags().GetString("focus")
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(ch, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().Bool("highlight", false, "Style nodes and edges with validation problems")
	renderCmd.Flags().String("focus", "", "Node id to emphasize (with --highlight)")
}
