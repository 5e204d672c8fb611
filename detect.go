package eegprune

import "math"

// DetectInvalidSpans scans the sample matrix and returns one span per
// maximal run of columns where any channel holds NaN. An empty set means no
// invalid data was found; that is a normal outcome, not an error. The
// returned set is bound to the matrix length so a stale copy cannot later be
// excised from a shrunk timeline.
func DetectInvalidSpans(data [][]float64) SpanSet {
	if len(data) == 0 || len(data[0]) == 0 {
		return SpanSet{}
	}
	n := len(data[0])

	spans := make([]Span, 0, 8)
	runStart := -1
	for col := 0; col < n; col++ {
		invalid := false
		for _, ch := range data {
			if math.IsNaN(ch[col]) {
				invalid = true
				break
			}
		}
		switch {
		case invalid && runStart < 0:
			runStart = col
		case !invalid && runStart >= 0:
			spans = append(spans, Span{Start: runStart, End: col - 1})
			runStart = -1
		}
	}
	if runStart >= 0 {
		spans = append(spans, Span{Start: runStart, End: n - 1})
	}

	// Runs are emitted in order and maximal, so normalization cannot fail
	// and cannot merge anything away.
	ss, _ := NormalizeSpans(spans)
	return ss.WithDomain(n)
}

// UnwantedStageSpans builds the second-pass span set: sample ranges whose
// sleep stage (the most recent stage marker at or before them) is one of the
// unwanted codes. Samples before the first stage marker have no stage and
// are never selected. sampleCount bounds the final interval.
func UnwantedStageSpans(events []Event, unwanted []int, sampleCount int) SpanSet {
	if sampleCount <= 0 || len(unwanted) == 0 {
		return SpanSet{}
	}
	bad := make(map[int]bool, len(unwanted))
	for _, code := range unwanted {
		bad[code] = true
	}

	stages := make([]Event, 0, 64)
	for _, ev := range events {
		if ev.Type == EventSleepStage {
			stages = append(stages, ev)
		}
	}
	sortEventsByLatency(stages)

	spans := make([]Span, 0, 8)
	for i, ev := range stages {
		if !bad[ev.Stage] {
			continue
		}
		start := ev.Latency
		end := sampleCount - 1
		if i+1 < len(stages) {
			end = stages[i+1].Latency - 1
		}
		if start < 0 {
			start = 0
		}
		if end >= sampleCount {
			end = sampleCount - 1
		}
		if start > end {
			continue
		}
		spans = append(spans, Span{Start: start, End: end})
	}

	ss, _ := NormalizeSpans(spans)
	return ss.WithDomain(sampleCount)
}
