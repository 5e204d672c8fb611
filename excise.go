package eegprune

import (
	"fmt"
	"sort"
)

// ExciseStats summarizes what one excision pass did, including the
// recoverable anomalies it logged along the way.
type ExciseStats struct {
	SamplesRemoved     int       `json:"samples_removed"`
	SecondsRemoved     float64   `json:"seconds_removed"`
	EventsRemoved      int       `json:"events_removed"`
	BoundariesInserted int       `json:"boundaries_inserted"`
	Warnings           []Warning `json:"warnings,omitempty"`
}

// Excise removes the span set's sample ranges from the timeline and returns
// a new, fully consistent timeline: sample matrix and timestamp table shrunk
// by the identical column set, events inside removed ranges dropped (except
// protected boundary markers), surviving events shifted by the cumulative
// excised length preceding them, and a boundary marker inserted at every
// seam. The input timeline is never mutated.
//
// An empty set is a no-op. A span outside [0, N-1], or a set that was built
// against a different timeline length, is a fatal *ExcisionRangeError.
func Excise(tl *Timeline, spans SpanSet) (*Timeline, ExciseStats, error) {
	stats := ExciseStats{}
	if spans.IsEmpty() {
		return tl.Clone(), stats, nil
	}

	n := tl.SampleCount()
	if d := spans.Domain(); d != 0 && d != n {
		return nil, stats, &ExcisionRangeError{
			Span:        spans.Spans()[0],
			SampleCount: n,
			Reason:      fmt.Sprintf("span set was computed against %d samples; refusing stale set", d),
		}
	}

	// Defense against an un-merged caller: re-establish the SpanSet
	// invariant before touching anything.
	normalized, err := NormalizeSpans(spans.Spans())
	if err != nil {
		return nil, stats, err
	}
	if m := normalized.Merged(); m > 0 {
		stats.Warnings = append(stats.Warnings, Warning{
			Kind:    WarnSpansMerged,
			Message: fmt.Sprintf("excise input was not normalized: %d spans merged", m),
		})
	}
	cut := normalized.Spans()

	for _, sp := range cut {
		if sp.Start < 0 || sp.End >= n {
			return nil, stats, &ExcisionRangeError{Span: sp, SampleCount: n, Reason: "span outside timeline bounds"}
		}
	}

	out := tl.Clone()

	// Cumulative removed length strictly before each span.
	cum := make([]int, len(cut)+1)
	for i, sp := range cut {
		cum[i+1] = cum[i] + sp.Length()
	}
	removed := cum[len(cut)]
	newN := n - removed

	// Capture provenance before anything shifts: every surviving event must
	// be able to answer "where did I originally sit" for the audit trail.
	for i := range out.Events {
		captureProvenance(out, &out.Events[i])
	}

	// Drop events inside cut spans, shifting the survivors in a single pass
	// over the cumulative lengths. Boundary markers from an earlier pass are
	// protected: they collapse onto the new seam instead of being deleted.
	kept := out.Events[:0]
	for _, ev := range out.Events {
		j := sort.Search(len(cut), func(i int) bool { return cut[i].End >= ev.Latency })
		if j < len(cut) && cut[j].Contains(ev.Latency) {
			if ev.Type != EventBoundary {
				stats.EventsRemoved++
				continue
			}
			ev.Latency = cut[j].Start - cum[j]
		} else {
			ev.Latency -= cum[j]
		}
		refreshShift(&ev, out.Rate)
		kept = append(kept, ev)
	}
	out.Events = append([]Event(nil), kept...)

	// Record the removed ranges in original coordinates before the
	// timestamp table shrinks.
	newHistory := out.excised
	for _, sp := range cut {
		newHistory = append(newHistory, originalCoverage(tl, sp)...)
	}
	sort.Slice(newHistory, func(i, j int) bool { return newHistory[i].Start < newHistory[j].Start })

	// Boundary markers at each seam, tagged so later passes protect them.
	for i, sp := range cut {
		seam := sp.Start - cum[i]
		ev := Event{
			Type:    EventBoundary,
			Latency: seam,
			Provenance: Provenance{
				OriginalLatency:   intPtr(tl.OriginalIndex(sp.Start)),
				OriginalWallClock: timePtr(tl.Timestamps[sp.Start]),
			},
		}
		out.Events = append(out.Events, ev)
		stats.BoundariesInserted++
	}

	// Delete the sample columns and the timestamp table entries by the
	// identical index set; anything else silently desynchronizes them.
	for c := range out.Data {
		out.Data[c] = removeSpans(out.Data[c], cut)
	}
	out.Timestamps = removeSpans(out.Timestamps, cut)
	out.excised = newHistory

	sortEventsByLatency(out.Events)

	// A seam at the very end of the recording yields a boundary at newN;
	// drop such trailing events, loudly. A non-boundary event here means an
	// upstream bug and must never disappear without a trace.
	trimmed := out.Events[:0]
	for _, ev := range out.Events {
		if ev.Latency < newN {
			trimmed = append(trimmed, ev)
			continue
		}
		stats.Warnings = append(stats.Warnings, Warning{
			Kind:      WarnTrailingEventDropped,
			EventType: ev.Type,
			ProtoType: ev.ProtoType,
			Latency:   ev.Latency,
			Message: fmt.Sprintf("%s event at sample %d exceeds new length %d and was dropped",
				ev.Type, ev.Latency, newN),
		})
	}
	out.Events = append([]Event(nil), trimmed...)

	stats.SamplesRemoved = removed
	stats.SecondsRemoved = float64(removed) / out.Rate
	return out, stats, nil
}

// originalCoverage maps a span in current coordinates to the original-
// coordinate ranges it covers: the window between the mapped endpoints minus
// anything already excised in an earlier pass.
func originalCoverage(tl *Timeline, sp Span) []Span {
	lo := tl.OriginalIndex(sp.Start)
	hi := tl.OriginalIndex(sp.End)

	out := make([]Span, 0, 2)
	cur := lo
	for _, h := range tl.excised {
		if h.End < cur {
			continue
		}
		if h.Start > hi {
			break
		}
		if h.Start > cur {
			out = append(out, Span{Start: cur, End: h.Start - 1})
		}
		if h.End+1 > cur {
			cur = h.End + 1
		}
	}
	if cur <= hi {
		out = append(out, Span{Start: cur, End: hi})
	}
	return out
}

func removeSpans[T any](xs []T, spans []Span) []T {
	total := 0
	for _, sp := range spans {
		total += sp.Length()
	}
	out := make([]T, 0, len(xs)-total)
	prev := 0
	for _, sp := range spans {
		out = append(out, xs[prev:sp.Start]...)
		prev = sp.End + 1
	}
	return append(out, xs[prev:]...)
}
