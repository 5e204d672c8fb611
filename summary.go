package eegprune

import (
	"fmt"
	"strings"
	"time"
)

// Summary captures per-recording metadata and the outcome of both excision
// passes, for the JSON summary artifact and the human-readable notes.
type Summary struct {
	Recording       string    `json:"recording"`
	Channels        int       `json:"channels"`
	SampleRateHz    float64   `json:"sample_rate_hz"`
	StartTime       time.Time `json:"start_time"`
	OriginalSamples int       `json:"original_samples"`
	FinalSamples    int       `json:"final_samples"`
	OriginalSeconds float64   `json:"original_seconds"`
	FinalSeconds    float64   `json:"final_seconds"`

	InvalidSpans        int     `json:"invalid_spans"`
	InvalidSecondsCut   float64 `json:"invalid_seconds_cut"`
	UnwantedStageSpans  int     `json:"unwanted_stage_spans"`
	UnwantedSecondsCut  float64 `json:"unwanted_seconds_cut"`
	EventsRelocated     int     `json:"events_relocated"`
	EventsRemoved       int     `json:"events_removed"`
	BoundariesInserted  int     `json:"boundaries_inserted"`
	ValidStimPairs      int     `json:"valid_stim_pairs"`
	OmittedStimEvents   int     `json:"omitted_stim_events"`
	WarningCount        int     `json:"warning_count"`
	ReconciliationRows  int     `json:"reconciliation_rows"`
	PairDurationSeconds []float64 `json:"pair_duration_seconds,omitempty"`
}

// BuildSummaryNotes renders the summary as a short block of text for the log
// and for a reviewer skimming a batch run.
func BuildSummaryNotes(s *Summary) string {
	if s == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Recording: %s (%d channels @ %g Hz)\n", s.Recording, s.Channels, s.SampleRateHz)
	if !s.StartTime.IsZero() {
		fmt.Fprintf(&b, "Start: %s\n", s.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Length %s -> %s (%d -> %d samples)\n",
		formatDuration(s.OriginalSeconds),
		formatDuration(s.FinalSeconds),
		s.OriginalSamples,
		s.FinalSamples,
	)
	fmt.Fprintf(
		&b,
		"Removed %.1fs invalid data (%d spans) | %.1fs unwanted stages (%d spans)\n",
		s.InvalidSecondsCut,
		s.InvalidSpans,
		s.UnwantedSecondsCut,
		s.UnwantedStageSpans,
	)
	fmt.Fprintf(
		&b,
		"Events: %d relocated | %d removed | %d boundary markers inserted\n",
		s.EventsRelocated,
		s.EventsRemoved,
		s.BoundariesInserted,
	)
	fmt.Fprintf(
		&b,
		"Stim protocol: %d valid pairs | %d omitted | %d reconciliation rows\n",
		s.ValidStimPairs,
		s.OmittedStimEvents,
		s.ReconciliationRows,
	)
	if s.WarningCount > 0 {
		fmt.Fprintf(&b, "Warnings: %d (see log)\n", s.WarningCount)
	}
	if len(s.PairDurationSeconds) > 0 {
		fmt.Fprintf(
			&b,
			"Pair durations: %.1fs avg (%.1f-%.1fs)\n",
			meanFloat(s.PairDurationSeconds),
			minFloat(s.PairDurationSeconds),
			maxFloat(s.PairDurationSeconds),
		)
	}

	return b.String()
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
