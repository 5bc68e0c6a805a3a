package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harrison/mender/internal/fileutil"
	"github.com/harrison/mender/internal/models"
)

// loadSources reads the project's source files below dir, keyed by
// slash-separated path relative to dir. The scan result lists files left out.
func loadSources(dir string) (models.FileSet, *fileutil.ScanResult, error) {
	return fileutil.LoadFileSet(dir, fileutil.SourceOptions())
}

// readErrorInput returns the error message from --error, or from
// --error-file ("-" reads stdin), plus the optional stack trace.
func readErrorInput(message, errorFile, stackFile string, stdin io.Reader) (string, string, error) {
	if message == "" && errorFile != "" {
		data, err := readInput(errorFile, stdin)
		if err != nil {
			return "", "", err
		}
		message = string(data)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", "", fmt.Errorf("no error message given (use --error or --error-file)")
	}

	var stack string
	if stackFile != "" {
		data, err := readInput(stackFile, stdin)
		if err != nil {
			return "", "", err
		}
		stack = string(data)
	}
	return message, stack, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
