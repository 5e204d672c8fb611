package pipeline

import (
	"log/slog"

	"github.com/sleepmetrics/eegprune"
)

// Options configures one pruning run.
type Options struct {
	InputPath      string  // recording file (.edf or .fit)
	EventsPath     string  // JSON event sidecar, optional
	OutDir         string
	Format         string  // csv|json|parquet for the reconciliation report
	BufferSeconds  float64 // relocation buffer past a span's end
	UnwantedStages []int   // sleep-stage codes to excise wholesale
	StimWindow     eegprune.StimWindow
	Overwrite      bool
	Logger         *slog.Logger
}

// Result returns generated output paths plus the run summary.
type Result struct {
	OutputDir   string            `json:"output_dir"`
	ReportPath  string            `json:"report_path"`
	EventsPath  string            `json:"events_path"`
	SummaryPath string            `json:"summary_path"`
	NotesPath   string            `json:"notes_path"`
	PrunedPath  string            `json:"pruned_path,omitempty"`
	Summary     *eegprune.Summary `json:"summary"`
}
