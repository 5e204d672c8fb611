package main

import (
	"fmt"

	"github.com/sleepmetrics/eegprune"
	"github.com/sleepmetrics/eegprune/ingest"
	"github.com/spf13/cobra"
)

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <recording>",
		Short: "List invalid-data spans without modifying anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := ingest.Load(args[0])
			if err != nil {
				return fmt.Errorf("load recording: %w", err)
			}

			spans := eegprune.DetectInvalidSpans(rec.Data)
			if spans.IsEmpty() {
				fmt.Printf("%s: no invalid spans in %d samples\n", rec.Name, rec.SampleCount())
				return nil
			}

			fmt.Printf("%s: %d invalid spans, %.1fs of %d samples @ %g Hz\n",
				rec.Name, spans.Len(), spans.TotalSeconds(rec.Rate), rec.SampleCount(), rec.Rate)
			for _, sp := range spans.Spans() {
				fmt.Printf("  [%d, %d]  %.2fs\n", sp.Start, sp.End, sp.Seconds(rec.Rate))
			}
			return nil
		},
	}
}
