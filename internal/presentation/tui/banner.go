package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// PrintBanner writes the topograph banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	// Signal-chain palette: satellite blue to IRD green.
	lines := []struct{ text, color string }{
		{"  _                                         _    ", "#38bdf8"},
		{" | |_ ___  _ __   ___   __ _ _ __ __ _ _ __ | |__ ", "#22d3ee"},
		{" | __/ _ \\| '_ \\ / _ \\ / _` | '__/ _` | '_ \\| '_ \\", "#2dd4bf"},
		{" | || (_) | |_) | (_) | (_| | | | (_| | |_) | | | |", "#34d399"},
		{"  \\__\\___/| .__/ \\___/ \\__, |_|  \\__,_| .__/|_| |_|", "#4ade80"},
		{"          |_|         |___/          |_|         ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
