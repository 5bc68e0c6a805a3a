package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/mender/internal/fixstate"
)

// NewStateCommand creates the state subcommand
func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the fix attempt state",
		Long: `Show the fix attempt history recorded for a project.

With --error the attempt count of that error is shown, and --reset clears it
so the error can be fixed again before its cooldown or attempt limit runs out.
--cleanup evicts recent-fix entries older than the configured TTL.`,
		Args: cobra.NoArgs,
		RunE: runState,
	}

	cmd.Flags().StringP("dir", "d", ".", "Project directory")
	cmd.Flags().StringP("error", "e", "", "Error message to inspect")
	cmd.Flags().Bool("reset", false, "Forget the attempts recorded for --error")
	cmd.Flags().Bool("cleanup", false, "Evict expired recent-fix entries")
	cmd.Flags().Int("limit", 10, "Number of history entries to list (0 lists all)")

	return cmd
}

func runState(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	cfg, _, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}
	output := cmd.OutOrStdout()

	state, err := openState(cfg)
	if err != nil {
		return err
	}

	message, _ := cmd.Flags().GetString("error")
	reset, _ := cmd.Flags().GetBool("reset")
	cleanup, _ := cmd.Flags().GetBool("cleanup")
	if reset && message == "" {
		return fmt.Errorf("--reset requires --error")
	}

	changed := false
	if cleanup {
		n := state.Cleanup()
		fmt.Fprintf(output, "Evicted %d expired entries\n", n)
		changed = n > 0
	}

	if message != "" {
		fmt.Fprintf(output, "Signature: %s\n", fixstate.Signature(message))
		fmt.Fprintf(output, "Attempts: %d/%d\n", state.Attempts(message), cfg.State.MaxAttempts)
		if d := state.ShouldSkip(message); d.Skip {
			fmt.Fprintf(output, "Next run skips: %s\n", d.Reason)
		}
		if reset {
			state.Reset(message)
			changed = true
			fmt.Fprintln(output, "Reset")
		}
	}

	if changed {
		if err := state.Save(); err != nil {
			return err
		}
	}
	if message != "" {
		return nil
	}

	history := state.History()
	if len(history) == 0 {
		fmt.Fprintln(output, "No fix attempts recorded")
		return nil
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	for i := len(history) - 1; i >= 0; i-- {
		r := history[i]
		status := "failed"
		if r.Success {
			status = "fixed"
		}
		fmt.Fprintf(output, "%s  %-6s %-12s %-16s %8s  %s\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), status, r.Category, r.Strategy,
			r.Duration.Round(time.Millisecond), r.Signature)
	}
	return nil
}
