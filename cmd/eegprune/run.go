package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sleepmetrics/eegprune"
	"github.com/sleepmetrics/eegprune/pipeline"
	"github.com/spf13/cobra"
)

type runFlags struct {
	events    string
	outDir    string
	config    string
	format    string
	buffer    float64
	stages    []int
	overwrite bool
	verbose   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.events, "events", "", "JSON event sidecar (default: <recording>.events.json if present)")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "out", "output directory")
	cmd.Flags().StringVar(&f.config, "config", "", "TOML config file")
	cmd.Flags().StringVar(&f.format, "format", "", "reconciliation report format: csv|json|parquet")
	cmd.Flags().Float64Var(&f.buffer, "buffer", 0, "relocation buffer past a span's end, in seconds")
	cmd.Flags().IntSliceVar(&f.stages, "stages", nil, "sleep-stage codes to excise")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "reuse a non-empty output directory")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// options merges config-file values with explicitly set flags; a flag the
// user touched wins over the file.
func (f *runFlags) options(cmd *cobra.Command, input string) (pipeline.Options, error) {
	cfg, err := pipeline.LoadConfig(f.config)
	if err != nil {
		return pipeline.Options{}, err
	}
	if cmd.Flags().Changed("format") {
		cfg.Format = f.format
	}
	if cmd.Flags().Changed("buffer") {
		cfg.BufferSeconds = f.buffer
	}
	if cmd.Flags().Changed("stages") {
		cfg.UnwantedStages = f.stages
	}
	if f.overwrite {
		cfg.Overwrite = true
	}

	opts := cfg.Options(input, f.events, f.outDir)
	opts.Logger = newLogger(f.verbose)
	return opts, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <recording>",
		Short: "Prune one recording and write its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := pipeline.Run(opts)
			if err != nil {
				return err
			}

			fmt.Print(eegprune.BuildSummaryNotes(res.Summary))
			fmt.Printf("Report: %s\n", res.ReportPath)
			if res.PrunedPath != "" {
				fmt.Printf("Pruned recording: %s\n", res.PrunedPath)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func batchCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "batch <recording>...",
		Short: "Prune several recordings into per-recording subdirectories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd, "")
			if err != nil {
				return err
			}

			results, err := pipeline.RunBatch(opts, args)
			for _, res := range results {
				fmt.Printf("%s: %d -> %d samples, %d reconciliation rows\n",
					res.Summary.Recording,
					res.Summary.OriginalSamples,
					res.Summary.FinalSamples,
					res.Summary.ReconciliationRows)
			}
			if err != nil {
				return fmt.Errorf("%d of %d recordings failed: %w", len(args)-len(results), len(args), err)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
