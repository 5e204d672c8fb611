package eegprune

import "fmt"

// StimPair is a matched stimulation start/end with its duration.
type StimPair struct {
	Start       Event   `json:"start"`
	End         Event   `json:"end"`
	DurationSec float64 `json:"duration_sec"`
}

// OmittedStim describes a stimulation event (or pair) excluded by
// validation, and why.
type OmittedStim struct {
	StartLatency int    `json:"start_latency,omitempty"`
	EndLatency   int    `json:"end_latency,omitempty"`
	EventType    string `json:"event_type,omitempty"`
	Reason       string `json:"reason"`
}

// StimWindow bounds the acceptable duration of one stimulation block.
type StimWindow struct {
	MinSeconds float64
	MaxSeconds float64
}

// DefaultStimWindow is the protocol's nominal 3-minute stimulation block
// with tolerance.
var DefaultStimWindow = StimWindow{MinSeconds: 170, MaxSeconds: 220}

// ValidateStimPairs walks the stimulation events in latency order expecting
// strict start/end alternation, pairs them, and rejects pairs whose duration
// falls outside the window. Unexpected events (an end with no open start, a
// second start before an end) are reported individually. Validation is
// purely observational: it never removes events from the timeline.
func ValidateStimPairs(events []Event, rate float64, window StimWindow) ([]StimPair, []OmittedStim) {
	stims := make([]Event, 0, 32)
	for _, ev := range events {
		if ev.Type == EventStimStart || ev.Type == EventStimEnd {
			stims = append(stims, ev)
		}
	}
	sortEventsByLatency(stims)

	var pairs []StimPair
	var omitted []OmittedStim

	var open *Event
	for i := range stims {
		ev := stims[i]
		switch {
		case ev.Type == EventStimStart && open == nil:
			open = &stims[i]
		case ev.Type == EventStimEnd && open != nil:
			dur := float64(ev.Latency-open.Latency) / rate
			if dur >= window.MinSeconds && dur <= window.MaxSeconds {
				pairs = append(pairs, StimPair{Start: *open, End: ev, DurationSec: dur})
			} else {
				omitted = append(omitted, OmittedStim{
					StartLatency: open.Latency,
					EndLatency:   ev.Latency,
					Reason:       fmt.Sprintf("invalid duration (%.2fs)", dur),
				})
			}
			open = nil
		case ev.Type == EventStimStart:
			// Second start before an end: the open start can never pair.
			omitted = append(omitted, OmittedStim{
				StartLatency: open.Latency,
				EventType:    string(EventStimStart),
				Reason:       "stim start without matching stim end",
			})
			open = &stims[i]
		default:
			// End with no open start.
			omitted = append(omitted, OmittedStim{
				EndLatency: ev.Latency,
				EventType:  string(EventStimEnd),
				Reason:     fmt.Sprintf("unexpected %q event", ev.Type),
			})
		}
	}
	if open != nil {
		omitted = append(omitted, OmittedStim{
			StartLatency: open.Latency,
			EventType:    string(EventStimStart),
			Reason:       "stim start without matching stim end",
		})
	}
	return pairs, omitted
}
