package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/timmy/orisweep/internal/config"
	"github.com/timmy/orisweep/internal/report"
	"github.com/timmy/orisweep/internal/repository"
)

var (
	historyLimit int
	historyRun   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list.")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the per-agency results of the run whose ID starts with this prefix.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>] [--run <id-prefix>]",
	Short: "Lists recent sweeps from the history database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if !cfg.Database.Enabled {
			return errors.New("run history is disabled; set database.enabled")
		}

		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer repository.Close(db)
		repo := repository.NewRunRepository(db)

		if historyRun != "" {
			return showRun(cmd.Context(), repo, historyRun, cmd.OutOrStdout())
		}

		runs, err := repo.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		report.WriteHistory(cmd.OutOrStdout(), runs)
		return nil
	},
}

// showRun renders the single run matching prefix with its results.
func showRun(ctx context.Context, repo *repository.RunRepository, prefix string, out io.Writer) error {
	runs, err := repo.FindRunsByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	switch len(runs) {
	case 0:
		return fmt.Errorf("no run matches %q", prefix)
	case 1:
	default:
		return fmt.Errorf("run prefix %q is ambiguous: %d runs match", prefix, len(runs))
	}

	results, err := repo.GetResults(ctx, runs[0].ID)
	if err != nil {
		return err
	}
	report.WriteResults(out, &runs[0], results)
	return nil
}
