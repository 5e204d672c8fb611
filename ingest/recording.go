// Package ingest adapts external recording formats to the pipeline's shape
// contract: a channels-by-samples matrix, a sample rate, a per-sample
// timestamp table and an event list. The pipeline core never sees a file
// format.
package ingest

import (
	"fmt"
	"time"

	"github.com/sleepmetrics/eegprune"
)

// Recording is a loaded multi-channel physiological recording in the shape
// the pipeline consumes.
type Recording struct {
	Name          string
	Rate          float64
	ChannelLabels []string
	Data          [][]float64
	Timestamps    []time.Time
	Events        []eegprune.Event
}

// Timeline validates the recording and builds the pipeline's timeline.
func (r *Recording) Timeline() (*eegprune.Timeline, error) {
	tl, err := eegprune.NewTimeline(r.Rate, r.Data, r.Timestamps, r.Events)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", r.Name, err)
	}
	return tl, nil
}

// SampleCount returns the number of sample columns.
func (r *Recording) SampleCount() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}
