package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/playground-engine/jobsystem/internal/bench"
	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/jobs"
)

var (
	topoSimulate string
	topoJSON     bool
)

// topologyView is what the topology command prints.
type topologyView struct {
	Source   string            `json:"source"`
	Cores    hardware.Summary  `json:"cores"`
	Features hardware.Features `json:"features"`
	Plan     jobs.Plan         `json:"plan"`
}

// topologyCmd represents the topology command
var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Show detected cores and the worker layout",
	Long: `Probe the CPU topology and print the worker plan the scheduler would use:
which cores are reserved, which host the high priority tier and which host
the low priority tier.`,
	RunE: runTopology,
}

func init() {
	topologyCmd.Flags().StringVar(&topoSimulate, "simulate", "", "Simulate a topology, e.g. 8p4e")
	topologyCmd.Flags().BoolVar(&topoJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(topologyCmd)
}

func runTopology(cmd *cobra.Command, args []string) error {
	hw := cfg.Hardware
	if topoSimulate != "" {
		hw.Simulate = topoSimulate
	}

	topo, err := bench.NewTopology(&hw)
	if err != nil {
		return err
	}
	if err := topo.Init(); err != nil {
		return err
	}

	view := topologyView{
		Cores: hardware.Summarize(topo),
		Plan:  jobs.PlanForTopology(topo, cfg.Scheduler.ToJobsConfig()),
	}
	if d, ok := topo.(hardware.Describer); ok {
		view.Source = d.Source()
		view.Features = d.Features()
	}

	out := cmd.OutOrStdout()
	if topoJSON {
		return writeJSON(out, view)
	}

	heading(out, "Topology")
	field(out, "Source", "%s", view.Source)
	field(out, "CPUs", "%d (%d performance, %d efficient, %d unknown)",
		view.Cores.CPUs, view.Cores.Performance, view.Cores.Efficient, view.Cores.Unknown)
	if view.Features.Brand != "" {
		field(out, "Brand", "%s", view.Features.Brand)
	}
	field(out, "AVX/AVX2", "%t/%t", view.Features.AVX, view.Features.AVX2)
	fmt.Fprintln(out)

	heading(out, "Worker plan")
	reserved := make([]string, 0, len(view.Plan.Reserved))
	for _, c := range view.Plan.Reserved {
		reserved = append(reserved, fmt.Sprint(c.ID))
	}
	field(out, "Reserved", "%s", orNone(strings.Join(reserved, ",")))
	field(out, "Fallback", "%t", view.Plan.Fallback)

	rows := make([][]string, 0, len(view.Plan.Workers()))
	for _, w := range view.Plan.Workers() {
		rows = append(rows, []string{fmt.Sprint(w.ID), w.Name, w.Tier.String(), fmt.Sprint(w.CoreID), w.Class.String()})
	}
	renderTable(out, []string{"ID", "WORKER", "TIER", "CORE", "CLASS"}, rows)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
