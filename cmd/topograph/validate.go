package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/topograph/internal/presentation/tui"
	"github.com/aretw0/topograph/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a diagram for consistency",
	Long: `Reports every entry a save would discard, edge handles that do not resolve on
their node, and ports shared by several edges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readDiagram(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if _, err := validator.ValidateDiagram(raw); err != nil {
			var verr *validator.Error
			if errors.As(err, &verr) {
				if werr := reportProblems(cmd, args[0], verr.Problems); werr != nil {
					return werr
				}
			}
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Diagram is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print the problems as JSON")
	validateCmd.Flags().Bool("pretty", false, "Render the problems as a table (default when attached to a terminal)")
}

func reportProblems(cmd *cobra.Command, source string, problems []validator.Problem) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeValue(out, problems, "json")
	}
	pretty, _ := cmd.Flags().GetBool("pretty")
	if !pretty && !tui.IsTerminal(out) {
		return nil
	}
	rendered, err := tui.NewRenderer()(tui.ProblemsMarkdown(source, problems))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
