package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/analytics"
	"github.com/harrison/mender/internal/config"
	"github.com/harrison/mender/internal/display"
	"github.com/harrison/mender/internal/engine"
	"github.com/harrison/mender/internal/filelock"
	"github.com/harrison/mender/internal/fixstate"
	"github.com/harrison/mender/internal/llm"
	"github.com/harrison/mender/internal/logger"
	"github.com/harrison/mender/internal/models"
)

// NewFixCommand creates the fix subcommand
func NewFixCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Repair the project so the given error goes away",
		Long: `Run a fix session for one error against the project's source files.

Local strategies run first; language-model strategies follow when a provider
is configured. The first verified fix is written back to the project under a
file lock. Repeated runs for the same error respect the attempt limit and the
cooldown recorded in the fix state.

Exit code: 0 if fixed or skipped, 1 otherwise`,
		Args: cobra.NoArgs,
		RunE: runFix,
	}

	cmd.Flags().StringP("error", "e", "", "Error message to fix")
	cmd.Flags().String("error-file", "", "Read the error message from a file (- for stdin)")
	cmd.Flags().String("stack-file", "", "Read the stack trace from a file (- for stdin)")
	cmd.Flags().StringP("dir", "d", ".", "Project directory")
	cmd.Flags().StringP("file", "f", "", "Project-relative file to focus on")
	cmd.Flags().StringSlice("skip", nil, "Strategies to skip (e.g. ai-regenerate)")
	cmd.Flags().String("provider", "", "Language model provider: none, claude, gemini (overrides config)")
	cmd.Flags().Bool("no-ai", false, "Use local strategies only")
	cmd.Flags().Bool("dry-run", false, "Report the fix without writing files")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics of the run to this file")
	cmd.Flags().Bool("no-log-file", false, "Do not write a run log under the mender home")

	return cmd
}

func runFix(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	cfg, home, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	if err := applyFixFlags(cmd, cfg); err != nil {
		return err
	}

	message, _ := cmd.Flags().GetString("error")
	errorFile, _ := cmd.Flags().GetString("error-file")
	stackFile, _ := cmd.Flags().GetString("stack-file")
	msg, stack, err := readErrorInput(message, errorFile, stackFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	files, scan, err := loadSources(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found in %s", dir)
	}
	errOut := cmd.ErrOrStderr()
	if len(scan.Oversized) > 0 {
		display.OversizedFiles(scan.Oversized).Display(errOut, useColor(errOut))
	}
	for _, e := range scan.Errors {
		fmt.Fprintf(errOut, "Warning: %v\n", e)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sinks := logger.Multi{logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)}
	if noLogFile, _ := cmd.Flags().GetBool("no-log-file"); !noLogFile {
		fl, err := logger.NewFileLogger(filepath.Join(home, "logs"), cfg.LogLevel)
		if err != nil {
			sinks.LogWarn(fmt.Sprintf("run log disabled: %v", err))
		} else {
			defer fl.Close()
			sinks = append(sinks, fl)
		}
	}

	state, err := openState(cfg)
	if err != nil {
		return err
	}
	if n := state.Cleanup(); n > 0 {
		sinks.LogDebug(fmt.Sprintf("Evicted %d expired fix state entries", n))
	}

	opts := []engine.Option{engine.WithState(state), engine.WithLogger(sinks)}

	if cfg.Analytics.Enabled {
		store, err := analytics.NewSQLiteStorage(cfg.Analytics.DBPath)
		if err != nil {
			return fmt.Errorf("open analytics: %w", err)
		}
		defer store.Close()
		a, err := analytics.New(ctx, store, cfg.AnalyticsOptions())
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithAnalytics(a))
	}

	gen, err := llm.New(ctx, cfg.LLMOptions())
	if err != nil {
		return fmt.Errorf("configure %s provider: %w", cfg.LLM.Provider, err)
	}
	if gen != nil {
		opts = append(opts, engine.WithGenerator(gen))
		sinks.LogDebug("Language model: " + gen.Name())
	} else {
		display.LocalOnly().Display(errOut, useColor(errOut))
	}

	reg := prometheus.NewRegistry()
	opts = append(opts, engine.WithMetrics(engine.NewMetrics(reg)))

	eng := engine.New(cfg.EngineOptions(), opts...)

	agentCfg := cfg.AgentOptions()
	agentCfg.TargetFile, _ = cmd.Flags().GetString("file")

	a := agent.New(eng, agentCfg, agent.Callbacks{
		OnLog:      sinks.LogEntry,
		OnProgress: sinks.LogProgress,
	})
	res := a.Run(ctx, msg, stack, files)
	sinks.LogFixResult(res.Last)

	if res.Success {
		if err := writeFix(cmd, dir, home, res.Files, sinks); err != nil {
			return err
		}
	}

	if metricsFile, _ := cmd.Flags().GetString("metrics-file"); metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			sinks.LogWarn(fmt.Sprintf("write metrics: %v", err))
		}
	}

	switch {
	case res.Success:
		return nil
	case res.Last != nil && res.Last.Skipped():
		return nil
	default:
		display.Exhausted(res.Message).Display(errOut, useColor(errOut))
		return errors.New(res.Message)
	}
}

// applyFixFlags merges the fix-specific flags into cfg.
func applyFixFlags(cmd *cobra.Command, cfg *config.Config) error {
	var providerPtr *string
	if cmd.Flags().Changed("provider") {
		provider, _ := cmd.Flags().GetString("provider")
		providerPtr = &provider
	}
	if noAI, _ := cmd.Flags().GetBool("no-ai"); noAI {
		none := llm.ProviderNone
		providerPtr = &none
	}

	names, _ := cmd.Flags().GetStringSlice("skip")
	skip := make([]models.FixStrategy, 0, len(names))
	for _, name := range names {
		s, ok := models.ParseStrategy(name)
		if !ok {
			return fmt.Errorf("unknown strategy %q in --skip", name)
		}
		skip = append(skip, s)
	}

	cfg.MergeWithFlags(nil, providerPtr, skip)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func openState(cfg *config.Config) (*fixstate.State, error) {
	if cfg.State.Path == "" {
		return fixstate.New(cfg.StateOptions()), nil
	}
	return fixstate.Open(cfg.State.Path, cfg.StateOptions())
}

// writeFix writes the fixed files below dir while holding the project
// write lock, or lists them on a dry run.
func writeFix(cmd *cobra.Command, dir, home string, files models.FileSet, sinks logger.Multi) error {
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		for _, p := range files.Paths() {
			sinks.LogInfo("Dry run, not writing " + p)
		}
		return nil
	}
	written, err := filelock.WriteFileSet(dir, filepath.Join(home, "write.lock"), files)
	if err != nil {
		return fmt.Errorf("write fix: %w", err)
	}
	sinks.LogInfo(fmt.Sprintf("Wrote %d file(s)", len(written)))
	return nil
}
