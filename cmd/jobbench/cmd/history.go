package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playground-engine/jobsystem/internal/report"
)

var (
	historyLimit   int
	historySession string
	historyJSON    bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded benchmark runs",
	Long:  `List the newest runs recorded with "run --report", or show one run by session ID.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show a single run by session ID")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, err := report.Open(ctx, &cfg.Report)
	if err != nil {
		return err
	}
	defer repo.Close()

	out := cmd.OutOrStdout()

	if historySession != "" {
		run, err := repo.BySession(ctx, historySession)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(out, run)
		}
		printRuns(cmd, []report.BenchRun{*run})
		if len(run.Plan) > 0 {
			fmt.Fprintln(out, string(run.Plan))
		}
		return nil
	}

	runs, err := repo.Latest(ctx, historyLimit)
	if err != nil {
		return err
	}
	summary, err := repo.Summary(ctx)
	if err != nil {
		return err
	}

	if historyJSON {
		return writeJSON(out, struct {
			Runs    []report.BenchRun  `json:"runs"`
			Summary *report.RunSummary `json:"summary"`
		}{runs, summary})
	}

	heading(out, "History")
	field(out, "Runs", "%d", summary.Runs)
	field(out, "Total jobs", "%d", summary.TotalJobs)
	field(out, "Avg", "%.0f jobs/s", summary.AvgThroughput)
	field(out, "Best", "%.0f jobs/s", summary.BestThroughput)
	fmt.Fprintln(out)
	printRuns(cmd, runs)
	return nil
}

func printRuns(cmd *cobra.Command, runs []report.BenchRun) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			fmt.Sprint(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.SessionID,
			fmt.Sprintf("%d/%d", r.HighWorkers, r.LowWorkers),
			fmt.Sprint(r.Jobs),
			r.Duration().Round(time.Microsecond).String(),
			fmt.Sprintf("%.0f", r.Throughput),
		})
	}
	renderTable(cmd.OutOrStdout(), []string{"ID", "WHEN", "SESSION", "H/L", "JOBS", "DURATION", "JOBS/S"}, rows)
}
