package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/playground-engine/jobsystem/internal/bench"
	"github.com/playground-engine/jobsystem/internal/workload"
	"github.com/playground-engine/jobsystem/pkg/telemetry"
)

var (
	runSpec     = workload.DefaultSpec()
	runSimulate string
	runPin      bool
	runCapture  bool
	runReport   bool
	runJSON     bool
	runTimeout  time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload through the scheduler",
	Long: `Build dependency trees of spinning jobs, submit them from several producers
and wait for every root to finish. Prints throughput, per-worker execution
counts and, with --capture, the per-worker timeline summary.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runSpec.Trees, "trees", runSpec.Trees, "Number of independent job trees")
	f.IntVar(&runSpec.Depth, "depth", runSpec.Depth, "Levels per tree")
	f.IntVar(&runSpec.Fanout, "fanout", runSpec.Fanout, "Children per non-leaf job")
	f.Float64Var(&runSpec.LowShare, "low-share", runSpec.LowShare, "Fraction of jobs submitted at low priority")
	f.IntVar(&runSpec.SpinIterations, "spin", runSpec.SpinIterations, "Busy-loop iterations per job")
	f.IntVar(&runSpec.Producers, "producers", runSpec.Producers, "Concurrent submitting goroutines")
	f.StringVar(&runSimulate, "simulate", "", "Simulate a topology, e.g. 8p4e")
	f.BoolVar(&runPin, "pin", true, "Pin workers to their cores")
	f.BoolVar(&runCapture, "capture", false, "Record the execution timeline and save it to storage")
	f.BoolVar(&runReport, "report", false, "Record the run in the history database")
	f.BoolVar(&runJSON, "json", false, "Print the run report as JSON")
	f.DurationVar(&runTimeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if runSimulate != "" {
		cfg.Hardware.Simulate = runSimulate
	}
	if flags.Changed("pin") {
		cfg.Scheduler.PinThreads = runPin
	}
	if runCapture {
		cfg.Capture.Enabled = true
	}
	if runReport {
		cfg.Report.Enabled = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	svc, err := bench.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	defer svc.Close()

	shutdown, err := telemetry.Init(ctx, telemetry.DescribeHost(svc.Topology()))
	if err != nil {
		logger.Warn("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("Failed to flush telemetry: %v", err)
		}
	}()

	logger.Info("Running %d trees x %d jobs (depth %d, fanout %d)",
		runSpec.Trees, runSpec.JobsPerTree(), runSpec.Depth, runSpec.Fanout)

	rep, err := svc.Run(ctx, runSpec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		return writeJSON(out, rep)
	}
	printRunReport(cmd, rep)
	return nil
}

func printRunReport(cmd *cobra.Command, rep *bench.RunReport) {
	out := cmd.OutOrStdout()

	heading(out, "Run "+rep.SessionID)
	field(out, "Jobs", "%d in %d trees", rep.Result.Jobs, rep.Result.Roots)
	field(out, "Duration", "%s", rep.Result.Duration.Round(time.Microsecond))
	field(out, "Throughput", "%.0f jobs/s", rep.Result.Throughput)
	field(out, "Workers", "%d high, %d low", rep.Stats.HighWorkers, rep.Stats.LowWorkers)
	if rep.CaptureKey != "" {
		field(out, "Capture", "%s", rep.CaptureKey)
	}
	if rep.RunID != 0 {
		field(out, "History ID", "%d", rep.RunID)
	}
	fmt.Fprintln(out)

	utilisation := make(map[int]string)
	if rep.Capture != nil {
		for _, w := range rep.Capture.Workers {
			utilisation[w.WorkerID] = fmt.Sprintf("%.1f%%", w.Utilisation*100)
		}
	}
	rows := make([][]string, 0, len(rep.Stats.Workers))
	for _, w := range rep.Stats.Workers {
		util, ok := utilisation[w.ID]
		if !ok {
			util = "-"
		}
		rows = append(rows, []string{w.Name, w.Tier, fmt.Sprint(w.Executed), w.Busy.Round(time.Microsecond).String(), util})
	}
	renderTable(out, []string{"WORKER", "TIER", "EXECUTED", "BUSY", "UTIL"}, rows)

	if rep.Capture != nil && len(rep.Capture.Tiers) > 0 {
		tiers := make([][]string, 0, len(rep.Capture.Tiers))
		for _, g := range rep.Capture.Tiers {
			tiers = append(tiers, []string{g.Group, fmt.Sprint(g.Jobs), g.Busy.Round(time.Microsecond).String()})
		}
		renderTable(out, []string{"TIER", "JOBS", "BUSY"}, tiers)
	}

	for _, p := range rep.Phases {
		logger.Debug("phase %s took %s", p.Name, p.Duration)
	}
}
