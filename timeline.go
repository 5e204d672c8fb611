package eegprune

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventType tags the category of a discrete marker on the timeline.
type EventType string

const (
	EventGeneric    EventType = "marker"
	EventStimStart  EventType = "stim start"
	EventStimEnd    EventType = "stim end"
	EventSleepStage EventType = "sleep stage"
	EventBoundary   EventType = "boundary"
)

// StageUnknown is reported when no sleep-stage marker precedes an event or
// when a stage code could not be parsed.
const StageUnknown = -1

// Provenance carries the pre-edit identity of an event across destructive
// passes. OriginalLatency is a sample index into the timeline as it was
// loaded, before any excision. Once set, these fields are never overwritten
// by a later pass.
type Provenance struct {
	OriginalLatency   *int       `json:"original_latency,omitempty"`
	OriginalWallClock *time.Time `json:"original_wall_clock,omitempty"`
	Moved             bool       `json:"moved"`
	ShiftSeconds      float64    `json:"shift_seconds"`
}

// Event is a discrete marker at a sample index of the current timeline.
type Event struct {
	Type       EventType  `json:"type"`
	Latency    int        `json:"latency"`
	ProtoType  int        `json:"proto_type,omitempty"`
	Stage      int        `json:"stage,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Timeline is the authoritative mapping from sample index to wall-clock time
// for one recording, together with the sample matrix and the ordered event
// list. All indices are 0-based; the timestamp table always has exactly one
// entry per sample column.
type Timeline struct {
	Rate       float64
	Data       [][]float64 // channels x samples
	Timestamps []time.Time
	Events     []Event

	// excised accumulates every span removed from this timeline, expressed
	// in original (pre-any-excision) sample coordinates.
	excised []Span
}

// NewTimeline validates the shape contract and builds a timeline. The event
// list is sorted by latency; the input slices are not retained.
func NewTimeline(rate float64, data [][]float64, timestamps []time.Time, events []Event) (*Timeline, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", rate)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("sample matrix has no channels")
	}
	n := len(data[0])
	for i, ch := range data {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d samples, channel 0 has %d", i, len(ch), n)
		}
	}
	if len(timestamps) != n {
		return nil, fmt.Errorf("timestamp table has %d entries for %d samples", len(timestamps), n)
	}
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Before(timestamps[i-1]) {
			return nil, fmt.Errorf("timestamp table is not monotonic at index %d", i)
		}
	}
	tl := &Timeline{
		Rate:       rate,
		Data:       cloneMatrix(data),
		Timestamps: append([]time.Time(nil), timestamps...),
		Events:     append([]Event(nil), events...),
	}
	sortEventsByLatency(tl.Events)
	return tl, nil
}

// SampleCount returns the current number of sample columns.
func (tl *Timeline) SampleCount() int {
	if len(tl.Data) == 0 {
		return 0
	}
	return len(tl.Data[0])
}

// ChannelCount returns the number of channels in the sample matrix.
func (tl *Timeline) ChannelCount() int { return len(tl.Data) }

// DurationSeconds returns the current recording length in seconds.
func (tl *Timeline) DurationSeconds() float64 {
	return float64(tl.SampleCount()) / tl.Rate
}

// TimeAt returns the wall-clock instant of the given sample index.
func (tl *Timeline) TimeAt(idx int) (time.Time, error) {
	if idx < 0 || idx >= len(tl.Timestamps) {
		return time.Time{}, fmt.Errorf("sample index %d outside timestamp table of length %d", idx, len(tl.Timestamps))
	}
	return tl.Timestamps[idx], nil
}

// Clone returns a deep copy. Destructive passes operate on a clone so the
// caller keeps its last-known-good state on failure.
func (tl *Timeline) Clone() *Timeline {
	return &Timeline{
		Rate:       tl.Rate,
		Data:       cloneMatrix(tl.Data),
		Timestamps: append([]time.Time(nil), tl.Timestamps...),
		Events:     append([]Event(nil), tl.Events...),
		excised:    append([]Span(nil), tl.excised...),
	}
}

// ExcisedSpans returns the cumulative excision history in original sample
// coordinates, sorted and non-overlapping.
func (tl *Timeline) ExcisedSpans() []Span {
	return append([]Span(nil), tl.excised...)
}

// ExcisedSeconds returns the total duration removed from this timeline so far.
func (tl *Timeline) ExcisedSeconds() float64 {
	total := 0
	for _, sp := range tl.excised {
		total += sp.Length()
	}
	return float64(total) / tl.Rate
}

// OriginalIndex maps a current sample index back to its index in the
// recording as loaded, accounting for every span excised so far.
func (tl *Timeline) OriginalIndex(idx int) int {
	orig := idx
	for _, sp := range tl.excised {
		if sp.Start <= orig {
			orig += sp.Length()
		} else {
			break
		}
	}
	return orig
}

// StageAt returns the sleep-stage code in effect at the given sample index:
// the most recent sleep-stage marker at or before it, or StageUnknown if
// none precedes it.
func (tl *Timeline) StageAt(idx int) int {
	return stageAt(tl.Events, idx)
}

func stageAt(events []Event, idx int) int {
	stages := make([]Event, 0, 16)
	for _, ev := range events {
		if ev.Type == EventSleepStage {
			stages = append(stages, ev)
		}
	}
	if len(stages) == 0 {
		return StageUnknown
	}
	// Stage markers are already latency-sorted as part of the event list.
	i := sort.Search(len(stages), func(i int) bool { return stages[i].Latency > idx })
	if i == 0 {
		return StageUnknown
	}
	return stages[i-1].Stage
}

// ParseStageCode parses a sleep-stage code carried as text on an ingested
// event. Parse failure is recoverable: the caller records StageUnknown
// instead of letting an unparsed code propagate.
func ParseStageCode(code string) (int, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return StageUnknown, false
	}
	v, err := strconv.Atoi(code)
	if err != nil {
		// Some exporters write stage codes as floats ("2.0").
		f, ferr := strconv.ParseFloat(code, 64)
		if ferr != nil || f != float64(int(f)) {
			return StageUnknown, false
		}
		v = int(f)
	}
	return v, true
}

func sortEventsByLatency(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Latency < events[j].Latency })
}

func cloneMatrix(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, ch := range data {
		out[i] = append([]float64(nil), ch...)
	}
	return out
}

// originalLatencyOf returns the event's pre-any-excision latency, falling
// back to the current latency when provenance was never captured. The bool
// reports whether the fallback was used.
func originalLatencyOf(ev Event) (int, bool) {
	if ev.Provenance.OriginalLatency != nil {
		return *ev.Provenance.OriginalLatency, false
	}
	return ev.Latency, true
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
