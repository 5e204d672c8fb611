// Package pipeline orchestrates the full pruning run for one recording:
// ingest, invalid-span detection, event relocation, excision, stage pruning,
// stimulation-pair validation and artifact writing.
package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sleepmetrics/eegprune"
	"github.com/sleepmetrics/eegprune/ingest"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Run executes the pruning pipeline for a single recording and writes all
// artifacts into opts.OutDir. Errors are prefixed with the recording name and
// the step that failed.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.InputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" && format != "parquet" {
		return nil, fmt.Errorf("unsupported format %q (expected csv|json|parquet)", format)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rec, err := loadRecording(opts.InputPath)
	if err != nil {
		return nil, err
	}
	name := rec.Name
	logger = logger.With("recording", name)

	if err := ensureOutDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, stepErr(name, "prepare output", err)
	}

	if opts.EventsPath != "" {
		f, err := os.Open(opts.EventsPath)
		if err != nil {
			return nil, stepErr(name, "load events", err)
		}
		sidecar, err := ingest.ReadEvents(f, rec.SampleCount())
		f.Close()
		if err != nil {
			return nil, stepErr(name, "load events", err)
		}
		rec.Events = append(rec.Events, sidecar...)
	}

	tl, err := rec.Timeline()
	if err != nil {
		return nil, stepErr(name, "load", err)
	}
	original := tl.Clone()

	buffer := int(math.Round(opts.BufferSeconds * tl.Rate))
	window := opts.StimWindow
	if window.MinSeconds == 0 && window.MaxSeconds == 0 {
		window = eegprune.DefaultStimWindow
	}

	summary := &eegprune.Summary{
		Recording:       name,
		Channels:        tl.ChannelCount(),
		SampleRateHz:    tl.Rate,
		OriginalSamples: tl.SampleCount(),
		OriginalSeconds: tl.DurationSeconds(),
	}
	if len(tl.Timestamps) > 0 {
		summary.StartTime = tl.Timestamps[0]
	}
	var allWarnings []eegprune.Warning

	prune := func(step string, spans eegprune.SpanSet) (eegprune.ExciseStats, error) {
		var stats eegprune.ExciseStats
		if spans.IsEmpty() {
			return stats, nil
		}
		for _, sp := range spans.Spans() {
			logger.Info("excising span",
				"step", step,
				"start_sample", sp.Start,
				"end_sample", sp.End,
				"seconds", sp.Seconds(tl.Rate))
		}
		moved, warns := eegprune.RelocateEvents(tl, spans, eegprune.RelocateOptions{BufferSamples: buffer})
		summary.EventsRelocated += countRelocated(tl.Events, spans, buffer, warns, logger)
		allWarnings = append(allWarnings, warns...)

		out, stats, err := eegprune.Excise(moved, spans)
		if err != nil {
			return stats, err
		}
		allWarnings = append(allWarnings, stats.Warnings...)
		summary.EventsRemoved += stats.EventsRemoved
		summary.BoundariesInserted += stats.BoundariesInserted
		tl = out
		return stats, nil
	}

	invalid := eegprune.DetectInvalidSpans(tl.Data)
	summary.InvalidSpans = invalid.Len()
	stats, err := prune("invalid data", invalid)
	if err != nil {
		return nil, stepErr(name, "excise invalid data", err)
	}
	summary.InvalidSecondsCut = stats.SecondsRemoved

	unwanted := eegprune.UnwantedStageSpans(tl.Events, opts.UnwantedStages, tl.SampleCount())
	summary.UnwantedStageSpans = unwanted.Len()
	stats, err = prune("unwanted stages", unwanted)
	if err != nil {
		return nil, stepErr(name, "excise unwanted stages", err)
	}
	summary.UnwantedSecondsCut = stats.SecondsRemoved

	pairs, omitted := eegprune.ValidateStimPairs(tl.Events, tl.Rate, window)
	summary.ValidStimPairs = len(pairs)
	summary.OmittedStimEvents = len(omitted)
	for _, p := range pairs {
		summary.PairDurationSeconds = append(summary.PairDurationSeconds, p.DurationSec)
	}
	for _, om := range omitted {
		logger.Warn("stimulation event omitted from pairing",
			"type", om.EventType,
			"start_sample", om.StartLatency,
			"reason", om.Reason)
	}

	records, repWarns := eegprune.BuildReport(original, tl)
	allWarnings = append(allWarnings, repWarns...)
	summary.ReconciliationRows = len(records)
	summary.FinalSamples = tl.SampleCount()
	summary.FinalSeconds = tl.DurationSeconds()
	summary.WarningCount = len(allWarnings)
	for _, w := range allWarnings {
		logger.Warn("pipeline warning", "kind", string(w.Kind), "detail", w.String())
	}

	// The CSV report is always written; json and parquet are written in
	// addition when requested.
	reportPath := filepath.Join(opts.OutDir, "reconciliation.csv")
	if err := writeReportCSV(reportPath, records); err != nil {
		return nil, stepErr(name, "write report", err)
	}
	switch format {
	case "json":
		reportPath = filepath.Join(opts.OutDir, "reconciliation.json")
		err = writeJSON(reportPath, records)
	case "parquet":
		reportPath = filepath.Join(opts.OutDir, "reconciliation.parquet")
		err = writeReportParquet(reportPath, records)
	}
	if err != nil {
		return nil, stepErr(name, "write report", err)
	}

	eventsPath := filepath.Join(opts.OutDir, "events.json")
	if err := writeEventsFile(eventsPath, tl.Events); err != nil {
		return nil, stepErr(name, "write events", err)
	}

	prunedPath := ""
	if tl.Rate == math.Trunc(tl.Rate) && tl.Rate > 0 {
		prunedPath = filepath.Join(opts.OutDir, "pruned.edf")
		if err := writePrunedEDF(prunedPath, rec, tl); err != nil {
			return nil, stepErr(name, "write pruned recording", err)
		}
	} else {
		logger.Warn("skipping pruned EDF output", "reason", "fractional sample rate", "rate_hz", tl.Rate)
	}

	summaryPath := filepath.Join(opts.OutDir, "summary.json")
	if err := writeJSON(summaryPath, summary); err != nil {
		return nil, stepErr(name, "write summary", err)
	}
	notesPath := filepath.Join(opts.OutDir, "notes.txt")
	if err := os.WriteFile(notesPath, []byte(eegprune.BuildSummaryNotes(summary)), 0o644); err != nil {
		return nil, stepErr(name, "write notes", err)
	}

	logger.Info("pruning complete",
		"final_samples", summary.FinalSamples,
		"seconds_cut", summary.InvalidSecondsCut+summary.UnwantedSecondsCut,
		"reconciliation_rows", summary.ReconciliationRows,
		"warnings", summary.WarningCount)

	return &Result{
		OutputDir:   opts.OutDir,
		ReportPath:  reportPath,
		EventsPath:  eventsPath,
		SummaryPath: summaryPath,
		NotesPath:   notesPath,
		PrunedPath:  prunedPath,
		Summary:     summary,
	}, nil
}

// RunBatch prunes several recordings under a shared output root, one
// subdirectory per recording. A failed recording is logged and skipped; the
// joined error reports every failure after the batch finishes.
func RunBatch(base Options, inputs []string) ([]*Result, error) {
	logger := base.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var results []*Result
	var failures []error
	for _, input := range inputs {
		opts := base
		opts.InputPath = input
		opts.Logger = logger
		opts.OutDir = filepath.Join(base.OutDir, recordingName(input))
		if base.EventsPath == "" {
			if sidecar := defaultSidecarPath(input); fileExists(sidecar) {
				opts.EventsPath = sidecar
			}
		}

		res, err := Run(opts)
		if err != nil {
			logger.Error("recording failed", "input", input, "err", err)
			failures = append(failures, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(failures...)
}

func stepErr(name, step string, err error) error {
	return fmt.Errorf("recording %s failed at %s: %w", name, step, err)
}

func recordingName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// defaultSidecarPath is the conventional events file next to a recording:
// night1.edf -> night1.events.json.
func defaultSidecarPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".events.json"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadRecording(path string) (*ingest.Recording, error) {
	rec, err := ingest.Load(path)
	if err != nil {
		return nil, stepErr(recordingName(path), "load", err)
	}
	return rec, nil
}

func ensureOutDir(dir string, overwrite bool) error {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory %s is not empty (pass overwrite to reuse it)", dir)
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// countRelocated counts the stimulation events that sat inside a span and
// were moved past it, logging each move. Events whose relocation target fell
// off the recording are already reported as warnings and are not counted.
func countRelocated(before []eegprune.Event, spans eegprune.SpanSet, buffer int, warns []eegprune.Warning, logger *slog.Logger) int {
	unresolved := make(map[int]bool)
	for _, w := range warns {
		if w.Kind == eegprune.WarnUnresolvableRelocation {
			unresolved[w.Latency] = true
		}
	}

	n := 0
	for _, ev := range before {
		if ev.Type != eegprune.EventStimStart && ev.Type != eegprune.EventStimEnd {
			continue
		}
		sp, inside := spans.Covering(ev.Latency)
		if !inside || unresolved[ev.Latency] {
			continue
		}
		n++
		logger.Info("relocated event",
			"type", string(ev.Type),
			"proto_type", ev.ProtoType,
			"from_sample", ev.Latency,
			"to_sample", sp.End+buffer)
	}
	return n
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEventsFile(path string, events []eegprune.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ingest.WriteEvents(f, events)
}

func writePrunedEDF(path string, rec *ingest.Recording, tl *eegprune.Timeline) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	pruned := &ingest.Recording{
		Name:          rec.Name,
		Rate:          tl.Rate,
		ChannelLabels: rec.ChannelLabels,
		Data:          tl.Data,
		Timestamps:    tl.Timestamps,
		Events:        tl.Events,
	}
	return ingest.WriteEDF(f, pruned)
}

func writeReportCSV(path string, records []eegprune.ReconciliationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(eegprune.ReconciliationColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			string(r.EventType),
			strconv.Itoa(r.ProtoType),
			formatSeconds(r.OriginalLatencySec),
			formatSeconds(r.NewLatencySec),
			r.ActualTime,
			formatSeconds(r.ShiftDistanceSec),
			strconv.FormatBool(r.Moved),
			strconv.Itoa(r.SleepStage),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

type reconciliationParquetRow struct {
	EventType          string  `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ProtoType          int64   `parquet:"name=proto_type, type=INT64"`
	OriginalLatencySec float64 `parquet:"name=original_latency_sec, type=DOUBLE"`
	NewLatencySec      float64 `parquet:"name=new_latency_sec, type=DOUBLE"`
	ActualTime         string  `parquet:"name=actual_time, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ShiftDistanceSec   float64 `parquet:"name=shift_distance_sec, type=DOUBLE"`
	Moved              bool    `parquet:"name=moved, type=BOOLEAN"`
	SleepStage         int64   `parquet:"name=sleep_stage, type=INT64"`
}

func writeReportParquet(path string, records []eegprune.ReconciliationRecord) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(reconciliationParquetRow), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range records {
		row := reconciliationParquetRow{
			EventType:          string(r.EventType),
			ProtoType:          int64(r.ProtoType),
			OriginalLatencySec: r.OriginalLatencySec,
			NewLatencySec:      r.NewLatencySec,
			ActualTime:         r.ActualTime,
			ShiftDistanceSec:   r.ShiftDistanceSec,
			Moved:              r.Moved,
			SleepStage:         int64(r.SleepStage),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
