package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/playground-engine/jobsystem/pkg/config"
	"github.com/playground-engine/jobsystem/pkg/pprof"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

var (
	// Global flags
	verbose bool
	cfgFile string
	logger  utils.Logger
	cfg     *config.Config

	// Pprof flags
	pprofEnabled  bool
	pprofMode     string
	pprofDir      string
	pprofProfiles string
	pprofAddr     string

	// Pprof collector
	pprofCollector *pprof.Collector
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jobbench",
	Short: "Benchmark the priority job scheduler on this machine",
	Long: `jobbench drives the job system with synthetic dependency trees.

It detects performance and efficiency cores, lays out the high and low
priority worker tiers, runs a workload and reports throughput. Runs can be
captured as execution timelines and recorded in a history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewLogger(logLevel, utils.LogFormat(cfg.Log.Format), cmd.ErrOrStderr())
		utils.SetGlobalLogger(logger)

		if err := applyPprofFlags(cmd, &cfg.Profiling); err != nil {
			return err
		}
		if cfg.Profiling.Enabled {
			collector, err := pprof.NewCollector(&cfg.Profiling, logger)
			if err != nil {
				return err
			}
			if err := collector.Start(); err != nil {
				return err
			}
			pprofCollector = collector
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		stopPprof()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		stopPprof()
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ./jobbench.yaml)")

	// Pprof flags
	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Profile jobbench itself while it runs")
	rootCmd.PersistentFlags().StringVar(&pprofMode, "pprof-mode", "file", "Pprof mode: file (written on exit) or http (on-demand)")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap,mutex", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")
	rootCmd.PersistentFlags().StringVar(&pprofAddr, "pprof-addr", "localhost:6060", "HTTP listen address for http mode")

	binName := BinName()
	rootCmd.Example = `  # Show the detected cores and the worker layout
  ` + binName + ` topology

  # Plan for a simulated hybrid CPU with 8 performance and 4 efficiency cores
  ` + binName + ` topology --simulate 8p4e

  # Run the default workload and print throughput
  ` + binName + ` run

  # Run a wide workload, save the timeline and record it in the history
  ` + binName + ` run --trees 64 --fanout 8 --capture --report

  # Profile the scheduler under load
  ` + binName + ` run --trees 256 --pprof --pprof-profiles cpu,mutex

  # Show the last recorded runs
  ` + binName + ` history --limit 5`
}

// applyPprofFlags lets explicitly set flags override the profiling section.
func applyPprofFlags(cmd *cobra.Command, p *pprof.Config) error {
	flags := cmd.Flags()
	if flags.Changed("pprof") {
		p.Enabled = pprofEnabled
	}
	if flags.Changed("pprof-mode") {
		p.Mode = pprof.ModeType(pprofMode)
	}
	if flags.Changed("pprof-dir") {
		p.OutputDir = pprofDir
	}
	if flags.Changed("pprof-addr") {
		p.Addr = pprofAddr
	}
	if flags.Changed("pprof-profiles") {
		profiles, err := pprof.ParseProfileTypes(pprofProfiles)
		if err != nil {
			return err
		}
		p.Profiles = profiles
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("pprof: %w", err)
	}
	return nil
}

func stopPprof() {
	if pprofCollector == nil {
		return
	}
	if err := pprofCollector.Stop(); err != nil {
		logger.Warn("Failed to stop pprof collector: %v", err)
	}
	pprofCollector = nil
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
