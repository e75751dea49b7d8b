package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/persona/internal/pipeline"
	"github.com/ppiankov/persona/internal/store"
)

var (
	historyLimit int
	historyUser  string
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded analysis runs",
	Long: `History lists past analysis runs from the history database, newest
first. Given a run id, it prints that run's persona report instead.

Example:
  persona history
  persona history --user spez --limit 5
  persona history 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max runs to list")
	historyCmd.Flags().StringVar(&historyUser, "user", "", "only list runs for this username")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print a single run as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return fmt.Errorf("no history at %s (runs are recorded when store.enabled is true)", cfg.Store.Path)
	}

	repo, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if len(args) == 1 {
		return showRun(ctx, repo, args[0])
	}

	runs, err := repo.ListRuns(ctx, historyUser, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stderr, "No runs recorded yet\n")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-10s  %-9s  %-9s  %s\n", "RUN ID", "USER", "PROVIDER", "CITATIONS", "GROUNDING", "WHEN")
	for _, run := range runs {
		note := ""
		if run.Degraded {
			note = " (degraded)"
		}
		fmt.Printf("%-36s  %-20s  %-10s  %-9d  %-9d  %s%s\n",
			run.ID, run.Username, run.Provider, run.Citations, run.Grounding,
			run.CreatedAt.Local().Format("2006-01-02 15:04"), note)
	}
	return nil
}

func showRun(ctx context.Context, repo store.Repository, id string) error {
	run, err := repo.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Outcome)
	}

	if run.Outcome.Persona == nil {
		fmt.Println(run.Outcome.Message)
		return nil
	}
	fmt.Print(pipeline.NewRenderer().RenderText(run.Outcome.Persona))
	return nil
}
