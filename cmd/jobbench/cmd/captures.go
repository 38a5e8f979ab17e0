package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playground-engine/jobsystem/internal/capture"
	"github.com/playground-engine/jobsystem/internal/storage"
	"github.com/playground-engine/jobsystem/pkg/compression"
)

var capturesJSON bool

// capturesCmd represents the captures command
var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "Inspect saved execution timelines",
}

var capturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved captures",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCaptureStore()
		if err != nil {
			return err
		}
		keys, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if capturesJSON {
			return writeJSON(out, keys)
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil
	},
}

var capturesShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Summarize a saved capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCaptureStore()
		if err != nil {
			return err
		}
		c, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sum := capture.Summarize(c)

		out := cmd.OutOrStdout()
		if capturesJSON {
			return writeJSON(out, sum)
		}

		heading(out, "Capture "+c.SessionID)
		field(out, "Started", "%s", c.StartedAt.Local().Format(time.RFC3339))
		field(out, "Host", "%s, %d CPUs (%dP/%dE)", c.Host.Source, c.Host.Cores.CPUs, c.Host.Cores.Performance, c.Host.Cores.Efficient)
		field(out, "Events", "%d (%d dropped)", sum.Events, sum.Dropped)
		field(out, "Wall", "%s", sum.Wall.Round(time.Microsecond))
		fmt.Fprintln(out)

		rows := make([][]string, 0, len(sum.Workers))
		for _, w := range sum.Workers {
			rows = append(rows, []string{w.Worker, fmt.Sprint(w.Jobs), w.Busy.Round(time.Microsecond).String(), fmt.Sprintf("%.1f%%", w.Utilisation*100)})
		}
		renderTable(out, []string{"WORKER", "JOBS", "BUSY", "UTIL"}, rows)

		families := make([][]string, 0, len(sum.Families))
		for _, g := range sum.Families {
			families = append(families, []string{g.Group, fmt.Sprint(g.Jobs), g.Busy.Round(time.Microsecond).String()})
		}
		renderTable(out, []string{"FAMILY", "JOBS", "BUSY"}, families)
		return nil
	},
}

func init() {
	capturesCmd.PersistentFlags().BoolVar(&capturesJSON, "json", false, "Print JSON")
	capturesCmd.AddCommand(capturesListCmd, capturesShowCmd)
	rootCmd.AddCommand(capturesCmd)
}

func openCaptureStore() (*capture.Store, error) {
	codec, err := compression.ParseType(cfg.Capture.Compression)
	if err != nil {
		return nil, err
	}
	st, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	return capture.NewStore(st, cfg.Capture.Prefix, codec, logger), nil
}
