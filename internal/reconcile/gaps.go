package reconcile

import (
	"fmt"

	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/services"
	"acrscan/internal/textutil"
)

// ResolveGaps collapses every no-result segment whose neighbors name the same
// work and continue each other in the reference recording. The input slice is
// not modified.
//
// The scan is a cursor over the slice. Each step either advances the cursor or
// commits a collapse, which yields a new slice and the cursor from which the
// surviving segment is examined again.
func ResolveGaps(segments []match.Segment, stats Stats, opts Options) ([]match.Segment, error) {
	opts = opts.normalized()
	out := make([]match.Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg.Clone()
	}

	cursor := 1
	for cursor < len(out)-1 {
		gap, err := detectGap(out, cursor, opts)
		if err != nil {
			return nil, err
		}
		if !gap {
			cursor++
			continue
		}
		out, cursor = commitGap(out, cursor, stats, opts)
	}
	return out, nil
}

// detectGap reports whether the segment at i is a collapsible gap.
func detectGap(segs []match.Segment, i int, opts Options) (bool, error) {
	gap := segs[i]
	if gap.Status != match.StatusNoResult {
		return false, nil
	}
	prev, next := segs[i-1], segs[i+1]
	if prev.Source != gap.Source || next.Source != gap.Source {
		return false, nil
	}
	if !textutil.TitlesEquivalent(prev.TitleRef(), next.TitleRef(), opts.TitleThreshold) {
		return false, nil
	}
	return continuous(prev, next, opts.TimeThresholdMs)
}

// continuous applies the reference-offset drift test across a gap:
// prev.db_end + next.played - next.db_begin < threshold.
func continuous(prev, next match.Segment, thresholdMs int64) (bool, error) {
	if prev.Canonical == nil || next.Canonical == nil || prev.DBTime == nil || next.DBTime == nil {
		return false, nil
	}
	if !prev.DBTime.Valid() || !next.DBTime.Valid() {
		return false, services.Wrap(services.ErrInvariant, "reconcile", "continuity",
			fmt.Sprintf("%s: inverted reference offsets around %dms", next.Source, next.Time.Begin), nil)
	}
	if next.PlayedMs < 0 {
		return false, services.Wrap(services.ErrInvariant, "reconcile", "continuity",
			fmt.Sprintf("%s: negative played duration %dms at %dms", next.Source, next.PlayedMs, next.Time.Begin), nil)
	}
	drift := prev.DBTime.End + next.PlayedMs - next.DBTime.Begin
	return drift < thresholdMs, nil
}

// commitGap removes the gap at i together with the losing neighbor and returns
// the new slice plus the cursor to resume from. The survivor lands at i-1; the
// cursor steps back to i-2 so a gap immediately left of the survivor is
// examined against its new right neighbor.
func commitGap(segs []match.Segment, i int, stats Stats, opts Options) ([]match.Segment, int) {
	prev, gap, next := segs[i-1], segs[i], segs[i+1]
	keepLeft, reason := preferLeft(prev, next, stats)

	survivor := next
	if keepLeft {
		survivor = prev
	}
	survivor.Time = match.Range{Begin: prev.Time.Begin, End: next.Time.End}
	// The reference recording may jump backwards across a gap; the survivor
	// keeps the range covering both neighbors so it never inverts.
	survivor.DBTime = &match.Range{
		Begin: min(prev.DBTime.Begin, next.DBTime.Begin),
		End:   max(prev.DBTime.End, next.DBTime.End),
	}
	survivor.Alternates = match.UnionAlternates(survivor.CanonicalID(), prev.Alternates, next.Alternates)
	survivor.RecomputePlayed()

	attrs := append(logging.DecisionAttrs("gap_resolution", survivorSide(keepLeft), reason),
		logging.String(logging.FieldSource, gap.Source),
		logging.Int64("gap_start_ms", gap.Time.Begin),
		logging.Int64("gap_end_ms", gap.Time.End),
		logging.String("canonical_id", survivor.CanonicalID()),
	)
	opts.Logger.Debug("no-result gap collapsed", logging.Args(attrs...)...)

	out := make([]match.Segment, 0, len(segs)-2)
	out = append(out, segs[:i-1]...)
	out = append(out, survivor)
	out = append(out, segs[i+2:]...)
	return out, max(1, i-2)
}

// preferLeft decides which neighbor of a gap survives: more occurrences
// (difference above 1), then a larger score sum (difference above 5), then
// richer metadata, then the left one.
func preferLeft(left, right match.Segment, stats Stats) (bool, string) {
	l, r := stats.Lookup(left.CanonicalID()), stats.Lookup(right.CanonicalID())
	if diff := l.Occurrences - r.Occurrences; diff > 1 || diff < -1 {
		return diff > 0, "occurrences"
	}
	if diff := l.ScoreSum - r.ScoreSum; diff > 5 || diff < -5 {
		return diff > 0, "score_sum"
	}
	lf, rf := populated(left), populated(right)
	if lf != rf {
		return lf > rf, "metadata"
	}
	return true, "left_neighbor"
}

func populated(seg match.Segment) int {
	if seg.Canonical == nil {
		return 0
	}
	return seg.Canonical.PopulatedFields()
}

func survivorSide(left bool) string {
	if left {
		return "left"
	}
	return "right"
}
