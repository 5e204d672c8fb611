package eegprune

import "sort"

// Span is a closed interval [Start, End] of 0-based sample indices marked
// for removal. Both bounds are inclusive.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length returns the number of samples covered by the span.
func (s Span) Length() int { return s.End - s.Start + 1 }

// Contains reports whether idx falls inside the closed interval. An index
// equal to End+1 sits at the boundary and is outside.
func (s Span) Contains(idx int) bool { return idx >= s.Start && idx <= s.End }

// Seconds returns the span duration at the given sample rate.
func (s Span) Seconds(rate float64) float64 { return float64(s.Length()) / rate }

// SpanSet is a normalized collection of spans: pairwise non-overlapping,
// sorted ascending by start, with touching spans merged. The zero value is
// an empty set.
type SpanSet struct {
	spans []Span

	// merged counts how many raw spans were absorbed during normalization,
	// so callers can log the shrinkage instead of hiding it.
	merged int

	// domain records the sample count the set was built against (0 when
	// unknown). Excise uses it to reject a stale set applied to a timeline
	// that has since shrunk.
	domain int
}

// NormalizeSpans sorts raw spans and merges every overlapping or touching
// pair. Spans with start > end or start < 0 are rejected with
// *InvalidSpanError.
func NormalizeSpans(raw []Span) (SpanSet, error) {
	return normalizeWithin(raw, 1, 0)
}

// NormalizeSpansWithin behaves like NormalizeSpans but merges spans whose
// gap is at most the given number of samples. gap=1 is the default
// "touching or overlapping" threshold.
func NormalizeSpansWithin(raw []Span, gap int) (SpanSet, error) {
	if gap < 1 {
		gap = 1
	}
	return normalizeWithin(raw, gap, 0)
}

func normalizeWithin(raw []Span, gap, domain int) (SpanSet, error) {
	for _, sp := range raw {
		if sp.Start > sp.End {
			return SpanSet{}, &InvalidSpanError{Span: sp, Reason: "start exceeds end"}
		}
		if sp.Start < 0 {
			return SpanSet{}, &InvalidSpanError{Span: sp, Reason: "negative start"}
		}
	}
	if len(raw) == 0 {
		return SpanSet{domain: domain}, nil
	}

	sorted := append([]Span(nil), raw...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := make([]Span, 0, len(sorted))
	cur := sorted[0]
	merged := 0
	for _, sp := range sorted[1:] {
		if sp.Start <= cur.End+gap {
			if sp.End > cur.End {
				cur.End = sp.End
			}
			merged++
			continue
		}
		out = append(out, cur)
		cur = sp
	}
	out = append(out, cur)
	return SpanSet{spans: out, merged: merged, domain: domain}, nil
}

// Insert re-normalizes the union of the set and the new span.
func (ss SpanSet) Insert(sp Span) (SpanSet, error) {
	union := append(append([]Span(nil), ss.spans...), sp)
	ns, err := normalizeWithin(union, 1, ss.domain)
	if err != nil {
		return SpanSet{}, err
	}
	ns.merged += ss.merged
	return ns, nil
}

// IsEmpty reports whether the set covers no samples.
func (ss SpanSet) IsEmpty() bool { return len(ss.spans) == 0 }

// Spans returns the sorted spans. The slice is a copy.
func (ss SpanSet) Spans() []Span { return append([]Span(nil), ss.spans...) }

// Len returns the number of disjoint spans.
func (ss SpanSet) Len() int { return len(ss.spans) }

// Merged returns how many raw spans were absorbed by merge-on-normalize.
func (ss SpanSet) Merged() int { return ss.merged }

// Domain returns the sample count the set was built against, 0 if unknown.
func (ss SpanSet) Domain() int { return ss.domain }

// WithDomain returns a copy of the set bound to the given sample count.
func (ss SpanSet) WithDomain(n int) SpanSet {
	ss.domain = n
	ss.spans = append([]Span(nil), ss.spans...)
	return ss
}

// TotalLength returns the number of samples covered by all spans.
func (ss SpanSet) TotalLength() int {
	total := 0
	for _, sp := range ss.spans {
		total += sp.Length()
	}
	return total
}

// TotalSeconds returns the covered duration at the given sample rate.
func (ss SpanSet) TotalSeconds(rate float64) float64 {
	return float64(ss.TotalLength()) / rate
}

// Covering returns the span containing idx, if any.
func (ss SpanSet) Covering(idx int) (Span, bool) {
	i := sort.Search(len(ss.spans), func(i int) bool { return ss.spans[i].End >= idx })
	if i < len(ss.spans) && ss.spans[i].Contains(idx) {
		return ss.spans[i], true
	}
	return Span{}, false
}
