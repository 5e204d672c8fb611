package eegprune

import (
	"errors"
	"math"
	"testing"
)

func mustSpans(t *testing.T, raw ...Span) SpanSet {
	t.Helper()
	ss, err := NormalizeSpans(raw)
	if err != nil {
		t.Fatalf("NormalizeSpans: %v", err)
	}
	return ss
}

func TestExciseLengthInvariant(t *testing.T) {
	tl := newTestTimeline(t, 1000, 10, nil)
	spans := mustSpans(t, Span{100, 199}, Span{700, 749})

	out, stats, err := Excise(tl, spans)
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	if out.SampleCount() != 1000-150 {
		t.Fatalf("sample count = %d, want 850", out.SampleCount())
	}
	if len(out.Timestamps) != out.SampleCount() {
		t.Fatalf("timestamp table length %d desynchronized from %d samples", len(out.Timestamps), out.SampleCount())
	}
	if stats.SamplesRemoved != 150 {
		t.Fatalf("stats removed = %d, want 150", stats.SamplesRemoved)
	}
	// The timestamp table must be cut by the identical column set: the
	// sample now at index 100 is the one that was at 200.
	if !out.Timestamps[100].Equal(tl.Timestamps[200]) {
		t.Fatal("timestamps not deleted by the same index set as the data")
	}
	// Input untouched.
	if tl.SampleCount() != 1000 {
		t.Fatal("Excise mutated its input")
	}
}

func TestExciseEventConservation(t *testing.T) {
	events := []Event{
		{Type: EventGeneric, Latency: 50},
		{Type: EventStimStart, Latency: 150, ProtoType: 1}, // inside first span: removed
		{Type: EventGeneric, Latency: 300},                 // between spans: shifted by 100
		{Type: EventStimEnd, Latency: 800, ProtoType: 1},   // after both: shifted by 150
	}
	tl := newTestTimeline(t, 1000, 10, events)
	spans := mustSpans(t, Span{100, 199}, Span{400, 449})

	out, stats, err := Excise(tl, spans)
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	if stats.EventsRemoved != 1 {
		t.Fatalf("events removed = %d, want 1", stats.EventsRemoved)
	}

	var generic []Event
	for _, ev := range out.Events {
		if ev.Type == EventGeneric {
			generic = append(generic, ev)
		}
	}
	if len(generic) != 2 || generic[0].Latency != 50 || generic[1].Latency != 200 {
		t.Fatalf("surviving generic events mis-shifted: %+v", generic)
	}
	end := findEvent(t, out.Events, EventStimEnd)
	if end.Latency != 650 {
		t.Fatalf("stim end latency = %d, want 650 (shift by cumulative 150)", end.Latency)
	}
	if end.Provenance.OriginalLatency == nil || *end.Provenance.OriginalLatency != 800 {
		t.Fatalf("shifted event lost original latency: %v", end.Provenance.OriginalLatency)
	}
	if !end.Provenance.Moved {
		t.Fatal("excision-shifted event should carry moved flag")
	}
}

func TestExciseInsertsProtectedBoundaries(t *testing.T) {
	tl := newTestTimeline(t, 1000, 10, nil)
	out, stats, err := Excise(tl, mustSpans(t, Span{400, 499}))
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	if stats.BoundariesInserted != 1 {
		t.Fatalf("boundaries inserted = %d, want 1", stats.BoundariesInserted)
	}
	b := findEvent(t, out.Events, EventBoundary)
	if b.Latency != 400 {
		t.Fatalf("boundary at %d, want seam 400", b.Latency)
	}

	// A later pass over a span containing the seam must not delete the
	// boundary marker; it collapses onto the new seam instead.
	out2, _, err := Excise(out, mustSpans(t, Span{350, 450}).WithDomain(out.SampleCount()))
	if err != nil {
		t.Fatalf("second Excise: %v", err)
	}
	b2 := findEvent(t, out2.Events, EventBoundary)
	if b2.Provenance.OriginalLatency == nil || *b2.Provenance.OriginalLatency != 400 {
		t.Fatalf("protected boundary lost provenance: %+v", b2)
	}
}

func TestExciseEmptySetIsNoOp(t *testing.T) {
	tl := newTestTimeline(t, 500, 10, []Event{{Type: EventGeneric, Latency: 7}})
	out, stats, err := Excise(tl, SpanSet{})
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	if stats.SamplesRemoved != 0 || stats.BoundariesInserted != 0 {
		t.Fatalf("no-op produced stats %+v", stats)
	}
	if out.SampleCount() != 500 || len(out.Events) != 1 || out.Events[0].Latency != 7 {
		t.Fatal("no-op excise altered the timeline")
	}
}

func TestExciseRejectsOutOfBounds(t *testing.T) {
	tl := newTestTimeline(t, 100, 10, nil)
	var rangeErr *ExcisionRangeError
	_, _, err := Excise(tl, mustSpans(t, Span{50, 150}))
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected ExcisionRangeError, got %v", err)
	}
}

func TestExciseRejectsStaleSpanSet(t *testing.T) {
	tl := newTestTimeline(t, 1000, 10, nil)
	data := tl.Data
	data[0][100] = math.NaN()
	spans := DetectInvalidSpans(data)

	out, _, err := Excise(tl, spans)
	if err != nil {
		t.Fatalf("first Excise: %v", err)
	}

	// Reusing the span set detected against the original length on the
	// shrunk timeline must fail loudly, not clamp.
	var rangeErr *ExcisionRangeError
	if _, _, err := Excise(out, spans); !errors.As(err, &rangeErr) {
		t.Fatalf("expected stale-set ExcisionRangeError, got %v", err)
	}
}

func TestExciseDropsTrailingBoundaryLoudly(t *testing.T) {
	// Excising a span that runs to the very last sample would put the seam
	// boundary past the new end; it is dropped, with a warning.
	tl := newTestTimeline(t, 100, 10, nil)
	out, stats, err := Excise(tl, mustSpans(t, Span{80, 99}))
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	if out.SampleCount() != 80 {
		t.Fatalf("sample count = %d, want 80", out.SampleCount())
	}
	for _, ev := range out.Events {
		if ev.Type == EventBoundary {
			t.Fatalf("trailing boundary should have been dropped, found at %d", ev.Latency)
		}
	}
	found := false
	for _, w := range stats.Warnings {
		if w.Kind == WarnTrailingEventDropped {
			found = true
		}
	}
	if !found {
		t.Fatal("trailing drop was silent")
	}
}

func TestExciseHistoryMapsOriginalIndices(t *testing.T) {
	tl := newTestTimeline(t, 1000, 10, nil)
	out, _, err := Excise(tl, mustSpans(t, Span{100, 199}))
	if err != nil {
		t.Fatalf("first Excise: %v", err)
	}
	// Current index 100 was original 200.
	if got := out.OriginalIndex(100); got != 200 {
		t.Fatalf("OriginalIndex(100) = %d, want 200", got)
	}

	out2, _, err := Excise(out, mustSpans(t, Span{300, 399}).WithDomain(out.SampleCount()))
	if err != nil {
		t.Fatalf("second Excise: %v", err)
	}
	// Current 300 skips both excisions: 300 + 100 + 100 = 500.
	if got := out2.OriginalIndex(300); got != 500 {
		t.Fatalf("OriginalIndex(300) = %d, want 500", got)
	}
	if got := out2.ExcisedSeconds(); got != 20 {
		t.Fatalf("ExcisedSeconds = %g, want 20", got)
	}
}

func TestRelocationThenExcision(t *testing.T) {
	// Combined flow: event at 150 inside [100,200], buffer 2.
	events := []Event{{Type: EventStimStart, Latency: 150, ProtoType: 1}}
	tl := newTestTimeline(t, 1000, 10, events)
	spans := mustSpans(t, Span{100, 200}).WithDomain(1000)

	moved, _ := RelocateEvents(tl, spans, RelocateOptions{BufferSamples: 2})
	if moved.Events[0].Latency != 202 {
		t.Fatalf("relocated to %d, want 202", moved.Events[0].Latency)
	}

	out, _, err := Excise(moved, spans)
	if err != nil {
		t.Fatalf("Excise: %v", err)
	}
	start := findEvent(t, out.Events, EventStimStart)
	if start.Latency != 202-101 {
		t.Fatalf("post-excision latency = %d, want 101", start.Latency)
	}
	if !start.Provenance.Moved {
		t.Fatal("relocated event lost moved flag through excision")
	}
}
