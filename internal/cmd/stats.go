package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/analytics"
	"github.com/harrison/mender/internal/logger"
	"github.com/harrison/mender/internal/models"
)

// NewStatsCommand creates the 'mender stats' command
func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show fix analytics",
		Long: `Display the recorded fix analytics of a project including:
  - Overall success rate
  - Success rate per error category with its best strategy
  - Success rate and average duration per strategy
  - The most recent attempts`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}

	cmd.Flags().StringP("dir", "d", ".", "Project directory")
	cmd.Flags().String("category", "", "Only show strategies used for this error category")
	cmd.Flags().Int("recent", 5, "Number of recent attempts to list (0 hides them)")
	cmd.Flags().Bool("json", false, "Print the summary as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	cfg, _, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}
	output := cmd.OutOrStdout()

	var category models.Category
	if name, _ := cmd.Flags().GetString("category"); name != "" {
		c, ok := parseCategory(name)
		if !ok {
			return fmt.Errorf("unknown category %q", name)
		}
		category = c
	}

	// Check if database exists
	if _, err := os.Stat(cfg.Analytics.DBPath); os.IsNotExist(err) {
		fmt.Fprintln(output, "No fix analytics recorded yet")
		fmt.Fprintf(output, "Database path: %s\n", cfg.Analytics.DBPath)
		return nil
	}

	store, err := analytics.NewSQLiteStorage(cfg.Analytics.DBPath)
	if err != nil {
		return fmt.Errorf("open analytics: %w", err)
	}
	defer store.Close()

	a, err := analytics.New(context.Background(), store, cfg.AnalyticsOptions())
	if err != nil {
		return err
	}
	sum := a.Summary()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		fmt.Fprintln(output, string(data))
		return nil
	}

	if sum.TotalAttempts == 0 {
		fmt.Fprintln(output, "No fix analytics recorded yet")
		return nil
	}

	recent, _ := cmd.Flags().GetInt("recent")
	printStatistics(output, a, sum, category, recent, useColor(output))
	return nil
}

// printStatistics formats and prints the analytics summary
func printStatistics(w io.Writer, a *analytics.Analytics, sum analytics.Summary, category models.Category, recent int, enableColor bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	if enableColor {
		cyan.EnableColor()
	} else {
		cyan.DisableColor()
	}

	fmt.Fprint(w, cyan.Sprint("\n=== Fix Analytics ===\n\n"))

	fmt.Fprint(w, cyan.Sprint("Overall Statistics:\n"))
	fmt.Fprintf(w, "  Total attempts: %d\n", sum.TotalAttempts)
	fmt.Fprintf(w, "  Successful: %d\n", sum.Successes)
	fmt.Fprintf(w, "  Success rate: %s\n", logger.FormatRate(sum.SuccessRate, enableColor))
	if !sum.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  Last update: %s\n", sum.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if category == "" {
		fmt.Fprintf(w, "\n")
		fmt.Fprint(w, cyan.Sprint("Categories:\n"))
		for _, c := range sum.TopCategories {
			best := "-"
			if s, ok := a.BestStrategy(c.Category); ok {
				best = string(s)
			}
			fmt.Fprintf(w, "  %-12s %5d attempts  %s  best: %s\n",
				c.Category, c.Attempts, logger.FormatRate(c.Rate(), enableColor), best)
		}
	}

	strategies := sum.Strategies
	title := "Strategies:"
	if category != "" {
		strategies = a.CategoryStrategyStats(category)
		title = fmt.Sprintf("Strategies for %s:", category)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprint(w, cyan.Sprintln(title))
	if len(strategies) == 0 {
		fmt.Fprintf(w, "  none recorded\n")
	}
	for _, s := range strategies {
		fmt.Fprintf(w, "  %-16s %5d attempts  %s  avg %s\n",
			s.Strategy, s.Attempts, logger.FormatRate(s.Rate(), enableColor), s.AverageDuration().Round(time.Millisecond))
	}

	if recent <= 0 {
		return
	}
	records := a.Recent()
	if len(records) == 0 {
		return
	}
	if len(records) > recent {
		records = records[:recent]
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprint(w, cyan.Sprint("Recent Attempts:\n"))
	for _, r := range records {
		status := "failed"
		if r.Success {
			status = "fixed"
		}
		fmt.Fprintf(w, "  %s  %-12s %-16s %s\n", r.Timestamp.Local().Format("01-02 15:04:05"), r.Category, r.Strategy, status)
	}
}

func parseCategory(name string) (models.Category, bool) {
	for _, c := range models.AllCategories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// useColor reports whether w is a terminal that should get colors.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
