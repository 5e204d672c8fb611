package eegprune

import "testing"

func TestRelocateMovesEventOutOfSpan(t *testing.T) {
	events := []Event{
		{Type: EventStimStart, Latency: 150, ProtoType: 1},
		{Type: EventStimEnd, Latency: 600, ProtoType: 1},
	}
	tl := newTestTimeline(t, 1000, 10, events)
	spans, err := NormalizeSpans([]Span{{100, 200}})
	if err != nil {
		t.Fatalf("NormalizeSpans: %v", err)
	}

	moved, warnings := RelocateEvents(tl, spans, RelocateOptions{BufferSamples: 2})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	start := findEvent(t, moved.Events, EventStimStart)
	if start.Latency != 202 {
		t.Fatalf("relocated latency = %d, want 202", start.Latency)
	}
	if !start.Provenance.Moved {
		t.Fatal("moved flag not set")
	}
	if want := 52.0 / 10.0; start.Provenance.ShiftSeconds != want {
		t.Fatalf("shift = %gs, want %gs", start.Provenance.ShiftSeconds, want)
	}
	if start.Provenance.OriginalLatency == nil || *start.Provenance.OriginalLatency != 150 {
		t.Fatalf("original latency provenance = %v, want 150", start.Provenance.OriginalLatency)
	}
	if start.Provenance.OriginalWallClock == nil {
		t.Fatal("original wall clock not captured")
	}

	// Events outside every span pass through untouched.
	end := findEvent(t, moved.Events, EventStimEnd)
	if end.Latency != 600 || end.Provenance.Moved || end.Provenance.ShiftSeconds != 0 {
		t.Fatalf("untouched event changed: %+v", end)
	}

	// The input timeline is left alone for the caller's recovery path.
	if tl.Events[0].Latency != 150 {
		t.Fatal("RelocateEvents mutated its input")
	}
}

func TestRelocateBoundaryTieBreak(t *testing.T) {
	// An event exactly at span.End+1 is outside the closed interval.
	events := []Event{{Type: EventStimStart, Latency: 201, ProtoType: 1}}
	tl := newTestTimeline(t, 1000, 10, events)
	spans, _ := NormalizeSpans([]Span{{100, 200}})

	moved, _ := RelocateEvents(tl, spans, RelocateOptions{BufferSamples: 2})
	if moved.Events[0].Latency != 201 || moved.Events[0].Provenance.Moved {
		t.Fatalf("event at end+1 must not move: %+v", moved.Events[0])
	}
}

func TestRelocateUnresolvableTargetLeavesEvent(t *testing.T) {
	events := []Event{{Type: EventStimStart, Latency: 990, ProtoType: 1}}
	tl := newTestTimeline(t, 1000, 10, events)
	spans, _ := NormalizeSpans([]Span{{980, 999}})

	moved, warnings := RelocateEvents(tl, spans, RelocateOptions{BufferSamples: 5})
	if len(warnings) != 1 || warnings[0].Kind != WarnUnresolvableRelocation {
		t.Fatalf("expected one unresolvable-relocation warning, got %v", warnings)
	}
	if moved.Events[0].Latency != 990 || moved.Events[0].Provenance.Moved {
		t.Fatalf("unresolvable event must stay in place: %+v", moved.Events[0])
	}
}

func TestRelocateFirstMoverProvenanceWins(t *testing.T) {
	events := []Event{{Type: EventStimStart, Latency: 150, ProtoType: 1}}
	tl := newTestTimeline(t, 1000, 10, events)

	spans1, _ := NormalizeSpans([]Span{{100, 200}})
	once, _ := RelocateEvents(tl, spans1, RelocateOptions{BufferSamples: 2})

	// A second pass moves the event again; the original provenance from the
	// first pass must survive.
	spans2, _ := NormalizeSpans([]Span{{202, 250}})
	twice, _ := RelocateEvents(once, spans2, RelocateOptions{BufferSamples: 3})

	ev := twice.Events[0]
	if ev.Latency != 253 {
		t.Fatalf("second relocation latency = %d, want 253", ev.Latency)
	}
	if ev.Provenance.OriginalLatency == nil || *ev.Provenance.OriginalLatency != 150 {
		t.Fatalf("second relocation overwrote provenance: %v", ev.Provenance.OriginalLatency)
	}
	if want := (253.0 - 150.0) / 10.0; ev.Provenance.ShiftSeconds != want {
		t.Fatalf("cumulative shift = %g, want %g", ev.Provenance.ShiftSeconds, want)
	}
}

func TestRelocateIgnoresFilteredCategories(t *testing.T) {
	events := []Event{
		{Type: EventSleepStage, Latency: 150, Stage: 2},
		{Type: EventGeneric, Latency: 160},
	}
	tl := newTestTimeline(t, 1000, 10, events)
	spans, _ := NormalizeSpans([]Span{{100, 200}})

	moved, warnings := RelocateEvents(tl, spans, RelocateOptions{BufferSamples: 2})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for _, ev := range moved.Events {
		if ev.Provenance.Moved {
			t.Fatalf("non-stim event was relocated: %+v", ev)
		}
	}
}

func findEvent(t *testing.T, events []Event, typ EventType) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == typ {
			return ev
		}
	}
	t.Fatalf("no %q event found", typ)
	return Event{}
}
