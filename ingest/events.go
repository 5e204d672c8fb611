package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sleepmetrics/eegprune"
)

// eventRecord is the JSON sidecar row. Latencies are 0-based sample indices
// against the recording the sidecar accompanies. Sleep-stage rows carry the
// scorer's stage code as a string; anything unparseable scores as unknown
// rather than failing the load.
type eventRecord struct {
	Type      string `json:"type"`
	Latency   int    `json:"latency"`
	ProtoType int    `json:"proto_type,omitempty"`
	Code      string `json:"code,omitempty"`
}

var knownEventTypes = map[eegprune.EventType]bool{
	eegprune.EventGeneric:    true,
	eegprune.EventStimStart:  true,
	eegprune.EventStimEnd:    true,
	eegprune.EventSleepStage: true,
	eegprune.EventBoundary:   true,
}

// ReadEvents parses a JSON event sidecar. sampleCount bounds the latencies;
// pass the accompanying recording's sample count.
func ReadEvents(r io.Reader, sampleCount int) ([]eegprune.Event, error) {
	var records []eventRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode event sidecar: %w", err)
	}

	events := make([]eegprune.Event, 0, len(records))
	for i, rec := range records {
		typ := eegprune.EventType(rec.Type)
		if !knownEventTypes[typ] {
			return nil, fmt.Errorf("event %d: unknown type %q", i, rec.Type)
		}
		if rec.Latency < 0 || rec.Latency >= sampleCount {
			return nil, fmt.Errorf("event %d (%s): latency %d outside recording of %d samples", i, rec.Type, rec.Latency, sampleCount)
		}
		ev := eegprune.Event{
			Type:      typ,
			Latency:   rec.Latency,
			ProtoType: rec.ProtoType,
			Stage:     eegprune.StageUnknown,
		}
		if typ == eegprune.EventSleepStage {
			if stage, ok := eegprune.ParseStageCode(rec.Code); ok {
				ev.Stage = stage
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// WriteEvents serializes an event list back to the sidecar format, after the
// pipeline has rewritten latencies. Provenance lives in the reconciliation
// report, not here.
func WriteEvents(w io.Writer, events []eegprune.Event) error {
	records := make([]eventRecord, len(events))
	for i, ev := range events {
		records[i] = eventRecord{
			Type:      string(ev.Type),
			Latency:   ev.Latency,
			ProtoType: ev.ProtoType,
		}
		if ev.Type == eegprune.EventSleepStage && ev.Stage != eegprune.StageUnknown {
			records[i].Code = fmt.Sprintf("%d", ev.Stage)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode event sidecar: %w", err)
	}
	return nil
}
