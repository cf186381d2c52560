package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// NotFound writes an error for a missing named item, with suggestions when
// any candidate is close
func NotFound(w io.Writer, kind, name string, candidates []string, noColor bool) {
	newColor(noColor, color.FgRed, color.Bold).Fprintf(w, "%s not found: %s\n", kind, name)
	if suggestions := Suggest(name, candidates, 3); len(suggestions) > 0 {
		newColor(noColor, color.FgYellow).Fprintf(w, "   Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}

// Success writes a success line
func Success(w io.Writer, message string, noColor bool) {
	newColor(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ %s\n", message)
}

// Warning writes a warning line
func Warning(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, newColor(noColor, color.FgYellow).Sprintf("! %s", message))
}
