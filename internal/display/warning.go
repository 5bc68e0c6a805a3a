// Package display renders user-facing notices of the mender CLI.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning, in yellow when enableColor is set
func (w Warning) Display(out io.Writer, enableColor bool) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}
		for i, file := range w.Files {
			fmt.Fprintf(&b, "      %d. %s\n", i+1, file)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	yellow := color.New(color.FgYellow)
	if enableColor {
		yellow.EnableColor()
	} else {
		yellow.DisableColor()
	}
	// Sprint honours the per-instance setting; Fprint falls back to the
	// global NoColor when resetting.
	fmt.Fprint(out, yellow.Sprint(b.String()))
}

// OversizedFiles warns that large files were left out of a fix session.
func OversizedFiles(files []string) Warning {
	return Warning{
		Title:      "Skipped large files",
		Message:    "These files are too large to send through the fixer and were not loaded.",
		Files:      files,
		Suggestion: "Focus the run with --file if the error comes from one of them.",
	}
}

// LocalOnly warns that no language model is configured, so only local
// strategies will run.
func LocalOnly() Warning {
	return Warning{
		Title:      "No language model configured",
		Message:    "Only local strategies will be tried.",
		Suggestion: "Set llm.provider to claude or gemini in .mender/config.yaml, or pass --provider.",
	}
}

// Exhausted suggests what to do after a session could not fix the error.
func Exhausted(message string) Warning {
	return Warning{
		Title:      "Error was not fixed",
		Message:    message,
		Suggestion: "Inspect the run log, then clear the attempt count with 'mender state --reset -e <error>' to retry.",
	}
}
