package eegprune

import "fmt"

// InvalidSpanError is fatal for the recording being processed: a raw span is
// malformed (start > end, or negative start) and must be surfaced rather
// than coerced into range.
type InvalidSpanError struct {
	Span   Span
	Reason string
}

func (e *InvalidSpanError) Error() string {
	return fmt.Sprintf("invalid span [%d,%d]: %s", e.Span.Start, e.Span.End, e.Reason)
}

// ExcisionRangeError is fatal: a span handed to Excise lies outside the
// current timeline, or the span set was computed against a timeline length
// that no longer matches. Either way it signals a stale SpanSet or an
// ordering bug upstream; clamping would hide it.
type ExcisionRangeError struct {
	Span        Span
	SampleCount int
	Reason      string
}

func (e *ExcisionRangeError) Error() string {
	return fmt.Sprintf("excision range [%d,%d] invalid for timeline of %d samples: %s",
		e.Span.Start, e.Span.End, e.SampleCount, e.Reason)
}

// WarningKind classifies a recoverable anomaly. Warnings are surfaced next
// to results; they never abort the pipeline.
type WarningKind string

const (
	WarnUnresolvableRelocation WarningKind = "unresolvable_relocation"
	WarnProtocolCountMismatch  WarningKind = "protocol_count_mismatch"
	WarnMissingProvenance      WarningKind = "missing_provenance"
	WarnTrailingEventDropped   WarningKind = "trailing_event_dropped"
	WarnSpansMerged            WarningKind = "spans_merged"
)

// Warning describes one recoverable anomaly encountered during a pass.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	EventType EventType   `json:"event_type,omitempty"`
	ProtoType int         `json:"proto_type,omitempty"`
	Latency   int         `json:"latency,omitempty"`
	Message   string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
