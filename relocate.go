package eegprune

import "fmt"

// RelocateOptions controls which events are pulled out of rejection spans
// before excision runs.
type RelocateOptions struct {
	// BufferSamples is added past the end of the covering span when an
	// event is moved: new latency = span.End + BufferSamples.
	BufferSamples int

	// Types filters which event categories are relocated. Empty means the
	// stimulation markers, the events the excision pass must not orphan.
	Types []EventType
}

func (o RelocateOptions) types() map[EventType]bool {
	types := o.Types
	if len(types) == 0 {
		types = []EventType{EventStimStart, EventStimEnd}
	}
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// RelocateEvents moves every matching event whose latency falls inside one
// of the spans to the first buffered sample after that span, recording shift
// provenance on the event. The input timeline is not mutated. An event whose
// computed target would land past the end of the recording is left in place
// and reported as a warning; the pass continues.
func RelocateEvents(tl *Timeline, spans SpanSet, opts RelocateOptions) (*Timeline, []Warning) {
	out := tl.Clone()
	if spans.IsEmpty() {
		return out, nil
	}

	wanted := opts.types()
	n := out.SampleCount()
	var warnings []Warning

	for i := range out.Events {
		ev := &out.Events[i]
		if !wanted[ev.Type] {
			continue
		}
		sp, inside := spans.Covering(ev.Latency)
		if !inside {
			continue
		}

		target := sp.End + opts.BufferSamples
		if target >= n {
			warnings = append(warnings, Warning{
				Kind:      WarnUnresolvableRelocation,
				EventType: ev.Type,
				ProtoType: ev.ProtoType,
				Latency:   ev.Latency,
				Message: fmt.Sprintf("%s at sample %d: relocation target %d exceeds recording length %d, event left unmoved",
					ev.Type, ev.Latency, target, n),
			})
			continue
		}

		captureProvenance(out, ev)
		ev.Latency = target
		refreshShift(ev, out.Rate)
	}

	sortEventsByLatency(out.Events)
	return out, warnings
}

// captureProvenance records the event's original latency and wall-clock time
// if no earlier pass has done so. First mover wins: a second relocation must
// not overwrite where the event truly came from.
func captureProvenance(tl *Timeline, ev *Event) {
	if ev.Provenance.OriginalLatency == nil {
		ev.Provenance.OriginalLatency = intPtr(tl.OriginalIndex(ev.Latency))
	}
	if ev.Provenance.OriginalWallClock == nil && ev.Latency < len(tl.Timestamps) {
		ev.Provenance.OriginalWallClock = timePtr(tl.Timestamps[ev.Latency])
	}
}

// refreshShift recomputes the signed shift (new minus original, in seconds)
// and the moved flag from the event's current latency and its provenance.
func refreshShift(ev *Event, rate float64) {
	if ev.Provenance.OriginalLatency == nil {
		return
	}
	ev.Provenance.ShiftSeconds = float64(ev.Latency-*ev.Provenance.OriginalLatency) / rate
	ev.Provenance.Moved = ev.Provenance.ShiftSeconds != 0
}
