package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetMenderHome returns the directory holding mender's config, state and
// analytics files.
// Priority order:
//  1. MENDER_HOME environment variable (if set)
//  2. <dir>/.mender
//
// The directory is created if it doesn't exist
func GetMenderHome(dir string) (string, error) {
	home := os.Getenv("MENDER_HOME")
	if home == "" {
		home = filepath.Join(dir, ".mender")
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create mender home directory: %w", err)
	}
	return home, nil
}

// ResolvePaths anchors relative state and analytics paths under home.
// Paths that already point below a ".mender" directory are taken relative
// to the project directory instead.
func (c *Config) ResolvePaths(projectDir, home string) {
	c.State.Path = resolve(c.State.Path, projectDir, home)
	c.Analytics.DBPath = resolve(c.Analytics.DBPath, projectDir, home)
}

func resolve(p, projectDir, home string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if first, _, _ := strings.Cut(filepath.ToSlash(p), "/"); first == ".mender" {
		if os.Getenv("MENDER_HOME") != "" {
			return filepath.Join(home, filepath.Base(p))
		}
		return filepath.Join(projectDir, p)
	}
	return filepath.Join(home, p)
}
