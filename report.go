package eegprune

import (
	"fmt"
	"sort"
	"time"
)

// ReconciliationRecord is one immutable audit row mapping a surviving event
// of interest back to its pre-excision state. Field order matches the column
// order of the emitted report.
type ReconciliationRecord struct {
	EventType          EventType `json:"event_type"`
	ProtoType          int       `json:"proto_type"`
	OriginalLatencySec float64   `json:"original_latency_sec"`
	NewLatencySec      float64   `json:"new_latency_sec"`
	ActualTime         string    `json:"actual_time"` // HH:MM:SS wall clock of the original position
	ShiftDistanceSec   float64   `json:"shift_distance_sec"`
	Moved              bool      `json:"moved"`
	SleepStage         int       `json:"sleep_stage"` // StageUnknown when no stage marker precedes the event
	ProvenanceFallback bool      `json:"provenance_fallback"`

	originalTime time.Time
}

// ReconciliationColumns is the fixed column order of the tabular report.
var ReconciliationColumns = []string{
	"Event_Type", "Proto_Type", "Original_Latency_sec", "New_Latency_sec",
	"Actual_Time", "Shift_Distance_sec", "Moved", "Sleep_Stage",
}

// BuildReport walks the surviving stimulation events of the pruned timeline
// and joins each against its pre-excision provenance. Original wall-clock
// times come from the original timestamp table (via the provenance captured
// before excision), never from the shrunk one. Rows are sorted by original
// time so a reviewer reads the protocol in the order it actually ran.
// Neither timeline is mutated.
//
// Rows whose provenance was never captured fall back to the event's current
// latency and time, and are flagged as fallbacks rather than presented as
// true originals.
func BuildReport(original, pruned *Timeline) ([]ReconciliationRecord, []Warning) {
	var records []ReconciliationRecord
	var warnings []Warning

	for _, ev := range pruned.Events {
		if ev.Type != EventStimStart && ev.Type != EventStimEnd {
			continue
		}

		origLat, fallback := originalLatencyOf(ev)
		var origTime time.Time
		switch {
		case ev.Provenance.OriginalWallClock != nil:
			origTime = *ev.Provenance.OriginalWallClock
		case !fallback && origLat < len(original.Timestamps):
			origTime = original.Timestamps[origLat]
		default:
			fallback = true
			if t, err := pruned.TimeAt(ev.Latency); err == nil {
				origTime = t
			}
		}
		if fallback {
			warnings = append(warnings, Warning{
				Kind:      WarnMissingProvenance,
				EventType: ev.Type,
				ProtoType: ev.ProtoType,
				Latency:   ev.Latency,
				Message: fmt.Sprintf("%s at sample %d lacks original-latency provenance; reporting current position as fallback",
					ev.Type, ev.Latency),
			})
		}

		records = append(records, ReconciliationRecord{
			EventType:          ev.Type,
			ProtoType:          ev.ProtoType,
			OriginalLatencySec: float64(origLat) / original.Rate,
			NewLatencySec:      float64(ev.Latency) / pruned.Rate,
			ActualTime:         origTime.Format("15:04:05"),
			ShiftDistanceSec:   ev.Provenance.ShiftSeconds,
			Moved:              ev.Provenance.Moved,
			SleepStage:         pruned.StageAt(ev.Latency),
			ProvenanceFallback: fallback,
			originalTime:       origTime,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].originalTime.Equal(records[j].originalTime) {
			return records[i].originalTime.Before(records[j].originalTime)
		}
		return records[i].OriginalLatencySec < records[j].OriginalLatencySec
	})

	warnings = append(warnings, CheckProtocolCounts(pruned.Events)...)
	return records, warnings
}

// CheckProtocolCounts verifies that every protocol type has as many
// stimulation starts as ends after excision. A mismatch is surfaced as a
// warning; it is never fixed up, because fabricating or deleting a marker
// would corrupt downstream protocol analysis invisibly.
func CheckProtocolCounts(events []Event) []Warning {
	starts := make(map[int]int)
	ends := make(map[int]int)
	for _, ev := range events {
		switch ev.Type {
		case EventStimStart:
			starts[ev.ProtoType]++
		case EventStimEnd:
			ends[ev.ProtoType]++
		}
	}

	protos := make([]int, 0, len(starts)+len(ends))
	seen := make(map[int]bool)
	for p := range starts {
		protos = append(protos, p)
		seen[p] = true
	}
	for p := range ends {
		if !seen[p] {
			protos = append(protos, p)
		}
	}
	sort.Ints(protos)

	var warnings []Warning
	for _, p := range protos {
		if starts[p] == ends[p] {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:      WarnProtocolCountMismatch,
			ProtoType: p,
			Message: fmt.Sprintf("protocol type %d has %d stim-start but %d stim-end events after excision",
				p, starts[p], ends[p]),
		})
	}
	return warnings
}
