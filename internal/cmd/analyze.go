package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/analyzer"
	"github.com/harrison/mender/internal/engine"
	"github.com/harrison/mender/internal/llm"
	"github.com/harrison/mender/internal/logger"
	"github.com/harrison/mender/internal/models"
)

// analysisReport is the --json output of analyze.
type analysisReport struct {
	*models.ParsedError
	Strategies []models.FixStrategy `json:"strategies"`
}

// NewAnalyzeCommand creates the analyze subcommand
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify an error without changing any file",
		Long: `Parse an error message (and optional stack trace) against the project's
source files and print what mender makes of it:
  - Error type, category, confidence and priority
  - Source location and related files
  - The strategies a fix run would try, in order`,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}

	cmd.Flags().StringP("error", "e", "", "Error message to analyze")
	cmd.Flags().String("error-file", "", "Read the error message from a file (- for stdin)")
	cmd.Flags().String("stack-file", "", "Read the stack trace from a file (- for stdin)")
	cmd.Flags().StringP("dir", "d", ".", "Project directory")
	cmd.Flags().Bool("no-ai", false, "Plan without language-model strategies")
	cmd.Flags().Bool("json", false, "Print the analysis as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	cfg, _, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	message, _ := cmd.Flags().GetString("error")
	errorFile, _ := cmd.Flags().GetString("error-file")
	stackFile, _ := cmd.Flags().GetString("stack-file")
	msg, stack, err := readErrorInput(message, errorFile, stackFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	files, _, err := loadSources(dir)
	if err != nil {
		return err
	}

	noAI, _ := cmd.Flags().GetBool("no-ai")
	ai := !noAI && cfg.LLM.Provider != llm.ProviderNone

	parsed := analyzer.Analyze(msg, stack, files)
	var strategies []models.FixStrategy
	if !parsed.IsIgnorable {
		strategies = engine.SelectStrategies(parsed.Category, ai)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(analysisReport{ParsedError: parsed, Strategies: strategies}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode analysis: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	console := logger.NewConsoleLogger(out, cfg.LogLevel)
	console.LogAnalysis(parsed)
	if parsed.IsIgnorable {
		console.LogInfo("Nothing to fix")
		return nil
	}
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	console.LogInfo("Strategies: " + strings.Join(names, ", "))
	return nil
}
