package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/topograph/internal/validator"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		if err != nil {
			return markdown, err
		}
		return r.Render(markdown)
	}
}

// ProblemsMarkdown lays validation problems out as a markdown table.
func ProblemsMarkdown(source string, problems []validator.Problem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", source)
	fmt.Fprintf(&sb, "%d problem(s) found.\n\n", len(problems))
	sb.WriteString("| Subject | Code | Detail |\n|---|---|---|\n")
	for _, p := range problems {
		subject := p.Subject
		if subject == "" {
			subject = "diagram"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", subject, p.Code, strings.ReplaceAll(p.Message, "|", "\\|"))
	}
	return sb.String()
}
