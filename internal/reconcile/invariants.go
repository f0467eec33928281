package reconcile

import (
	"fmt"

	"acrscan/internal/match"
	"acrscan/internal/services"
)

// CheckInvariants verifies a reconciled sequence: every range is ordered,
// adjacent segments of one source do not overlap by more than toleranceMs,
// and no alternate repeats the canonical ID or another alternate.
func CheckInvariants(segments []match.Segment, toleranceMs int64) error {
	for i, seg := range segments {
		if !seg.Time.Valid() {
			return invariantf("%s: segment %d ends before it starts (%d > %d)", seg.Source, i, seg.Time.Begin, seg.Time.End)
		}
		if seg.PlayedMs < 0 {
			return invariantf("%s: segment %d has negative played duration", seg.Source, i)
		}
		if err := checkAlternates(seg); err != nil {
			return invariantf("%s: segment %d: %v", seg.Source, i, err)
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if prev.Source == seg.Source && prev.Time.End > seg.Time.Begin+toleranceMs {
			return invariantf("%s: segment %d ends at %dms, after segment %d starts at %dms",
				seg.Source, i-1, prev.Time.End, i, seg.Time.Begin)
		}
	}
	return nil
}

func checkAlternates(seg match.Segment) error {
	seen := make(map[string]struct{}, len(seg.Alternates))
	own := seg.CanonicalID()
	for _, alt := range seg.Alternates {
		if own != "" && alt.CanonicalID == own {
			return fmt.Errorf("alternate repeats canonical %q", own)
		}
		if _, dup := seen[alt.CanonicalID]; dup {
			return fmt.Errorf("duplicate alternate %q", alt.CanonicalID)
		}
		seen[alt.CanonicalID] = struct{}{}
	}
	return nil
}

func invariantf(format string, args ...any) error {
	return services.Wrap(services.ErrInvariant, "reconcile", "check", fmt.Sprintf(format, args...), nil)
}

// Coverage returns the milliseconds of [start, end] not covered by any segment
// and the milliseconds covered more than once. Segments are assumed to belong
// to one source and be time ordered.
func Coverage(segments []match.Segment, start, end int64) (uncovered, overlapped int64) {
	cursor := start
	for _, seg := range segments {
		b, e := max(seg.Time.Begin, start), min(seg.Time.End, end)
		if e <= b {
			continue
		}
		if b > cursor {
			uncovered += b - cursor
		} else if b < cursor {
			overlapped += min(cursor, e) - b
		}
		cursor = max(cursor, e)
	}
	if cursor < end {
		uncovered += end - cursor
	}
	return uncovered, overlapped
}
