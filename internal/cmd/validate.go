package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/validation"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file-or-directory>...",
		Short: "Check source files for structural errors",
		Long: `Run the fix validator over source files, checking for:
  - Unbalanced brackets, braces and parentheses
  - Unterminated strings, template literals and comments
  - Unpaired markup tags in JSX/TSX files
  - Malformed JSON

Directories are scanned recursively for source files.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateWithOutput(args, cmd.OutOrStdout())
		},
	}

	return cmd
}

// validateWithOutput validates files with custom output writer (for testing)
func validateWithOutput(paths []string, output io.Writer) error {
	files := make(models.FileSet)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to access path: %w", err)
		}
		if info.IsDir() {
			found, _, err := loadSources(p)
			if err != nil {
				return err
			}
			for rel, content := range found {
				files[filepath.ToSlash(filepath.Join(p, rel))] = content
			}
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		files[filepath.ToSlash(p)] = string(data)
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	if !useColor(output) {
		green.DisableColor()
		red.DisableColor()
	}

	err := validation.ValidateFiles(files)
	var result *validation.Result
	if err != nil && !errors.As(err, &result) {
		return err
	}

	failed := make(map[string]bool)
	if result != nil {
		for _, fe := range result.Errors {
			failed[fe.Path] = true
		}
	}
	for _, p := range files.Paths() {
		if !failed[p] {
			green.Fprintf(output, "✓ %s\n", p)
		}
	}
	if result == nil {
		fmt.Fprintf(output, "\n%d file(s) valid\n", len(files))
		return nil
	}
	for _, fe := range result.Errors {
		red.Fprintf(output, "✗ %s\n", fe.Error())
	}
	return fmt.Errorf("validation failed: %d error(s) in %d file(s)", len(result.Errors), len(failed))
}
