// Package fileutil scans project directories for the source files a fix
// session works on.
//
// Scanning is error tolerant: unreadable entries are collected in
// ScanResult.Errors and the walk continues. Hidden directories are never
// descended into, which keeps .git and the .mender home out of every scan.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/mender/internal/models"
)

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Extensions is a list of file extensions to include (e.g., ".tsx", "css")
	Extensions []string
	// ExcludeDirs is a list of directory names to exclude (e.g., "node_modules")
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
	// MaxSize skips files larger than this many bytes (0 = no limit)
	MaxSize int64
}

// SourceOptions returns the options used for web project sources: scripts,
// markup, styles and JSON, without dependencies or build output.
func SourceOptions() ScanOptions {
	return ScanOptions{
		Extensions:  []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".css", ".json", ".html"},
		ExcludeDirs: []string{"node_modules", "dist", "build", "coverage", "out"},
		MaxSize:     512 * 1024,
	}
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the matched paths relative to the scanned directory,
	// slash separated and sorted
	Files []string
	// Oversized lists matched files skipped because of MaxSize
	Oversized []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

// ScanDirectory scans a directory for files matching the provided options
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	extMap := make(map[string]bool)
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}
	excludeMap := make(map[string]bool)
	for _, d := range opts.ExcludeDirs {
		excludeMap[d] = true
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}

		if d.IsDir() {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 && strings.Count(rel, string(filepath.Separator))+1 >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		rel = filepath.ToSlash(rel)
		if opts.MaxSize > 0 {
			fi, err := d.Info()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
				return nil
			}
			if fi.Size() > opts.MaxSize {
				result.Oversized = append(result.Oversized, rel)
				return nil
			}
		}

		result.Files = append(result.Files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	sort.Strings(result.Oversized)
	return result, nil
}

// LoadFileSet scans dir and reads every matched file into a FileSet keyed
// by relative path. Files that cannot be read are reported in the result's
// Errors and left out of the set.
func LoadFileSet(dir string, opts ScanOptions) (models.FileSet, *ScanResult, error) {
	result, err := ScanDirectory(dir, opts)
	if err != nil {
		return nil, nil, err
	}

	files := make(models.FileSet, len(result.Files))
	for _, rel := range result.Files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to read %s: %w", rel, err))
			continue
		}
		files[rel] = string(data)
	}
	return files, result, nil
}
