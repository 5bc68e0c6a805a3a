package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for mender
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mender",
		Short: "Automated error recovery for generated web projects",
		Long: `Mender takes a runtime or build error together with the project's
source files and tries to repair it.

It classifies the error, runs cheap deterministic local fixes first and
escalates to language-model strategies only when they fail. Every candidate
fix is verified before it is accepted, and repeated attempts at the same
error are rate limited.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints the returned error
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: <dir>/.mender/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	cmd.AddCommand(NewAnalyzeCommand())
	cmd.AddCommand(NewFixCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewStatsCommand())
	cmd.AddCommand(NewStateCommand())

	return cmd
}

// loadConfig reads the config for the project at dir, applies the
// persistent flags and anchors relative paths under the mender home.
// It returns the config and the home directory.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(dir)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	var logLevelPtr *string
	if cmd.Flags().Changed("log-level") {
		logLevel, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &logLevel
	}
	cfg.MergeWithFlags(logLevelPtr, nil, nil)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if info, err := os.Stat(absDir); err != nil {
		return nil, "", fmt.Errorf("failed to access %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, "", fmt.Errorf("%s is not a directory", dir)
	}
	home, err := config.GetMenderHome(absDir)
	if err != nil {
		return nil, "", err
	}
	cfg.ResolvePaths(absDir, home)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, home, nil
}
