package reconcile

import (
	"fmt"
	"log/slog"

	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/services"
	"acrscan/internal/textutil"
)

// Merge folds time-ordered window events into segments. Events of different
// sources may be interleaved only at source boundaries; within a source the
// offsets must strictly increase.
//
// Malformed sample offsets are reported and ignored. Structural problems with
// the input (unordered windows, alternates without a primary) fail the whole
// call with an ErrInvariant-marked error.
func Merge(events []match.WindowEvent, opts Options) ([]match.Segment, error) {
	opts = opts.normalized()
	if err := checkEvents(events); err != nil {
		return nil, err
	}
	m := merger{opts: opts, out: make([]match.Segment, 0, len(events))}
	for _, event := range events {
		m.add(event)
	}
	return m.out, nil
}

type merger struct {
	opts Options
	out  []match.Segment
}

func (m *merger) add(event match.WindowEvent) {
	cur := match.NewSegment(event)
	sample := m.sampleRange(event.Source, event.OffsetMs, cur.Canonical)

	if len(m.out) == 0 || m.last().Source != cur.Source {
		if sample != nil {
			cur.Time.Begin = event.OffsetMs + sample.Begin
			cur.RecomputePlayed()
		}
		m.out = append(m.out, cur)
		return
	}

	last := m.last()
	if swapped, ok := adoptPrevious(cur, last.CanonicalID()); ok {
		cur = swapped
		sample = m.sampleRange(event.Source, event.OffsetMs, cur.Canonical)
		m.opts.Logger.Debug("alternate promoted to canonical",
			logging.String(logging.FieldSource, event.Source),
			logging.Int64("window_offset_ms", event.OffsetMs),
			logging.String("canonical_id", cur.CanonicalID()),
		)
	}

	if textutil.TitlesEquivalent(cur.TitleRef(), last.TitleRef(), m.opts.TitleThreshold) {
		m.extend(last, cur, event.OffsetMs, sample)
		return
	}
	m.start(last, cur, event.OffsetMs, sample)
}

func (m *merger) last() *match.Segment {
	return &m.out[len(m.out)-1]
}

// extend continues the running segment with cur and discards cur.
func (m *merger) extend(last *match.Segment, cur match.Segment, offset int64, sample *match.Range) {
	end := cur.Time.End
	if sample != nil {
		end = offset + sample.End
	}
	if end > last.Time.End {
		last.Time.End = end
	}
	last.RecomputePlayed()
	last.Alternates = match.UnionAlternates(last.CanonicalID(), last.Alternates, cur.Alternates)

	if last.DBTime != nil && cur.DBTime != nil && cur.CanonicalID() == last.CanonicalID() && cur.DBTime.End > last.DBTime.End {
		last.DBTime.End = cur.DBTime.End
	}
	if last.Status == match.StatusOK && last.PlayedMs > m.opts.SustainedMs {
		last.Score = 100
	}
}

// start appends cur as a new segment and closes any no-result gap around it.
func (m *merger) start(last *match.Segment, cur match.Segment, offset int64, sample *match.Range) {
	if sample != nil {
		cur.Time = match.Range{Begin: offset + sample.Begin, End: offset + sample.End}
		cur.RecomputePlayed()
	}
	if last.Status == match.StatusNoResult {
		last.Time.End = max(cur.Time.Begin, last.Time.Begin)
		last.RecomputePlayed()
	}
	if cur.Status == match.StatusNoResult {
		cur.Time.Begin = min(last.Time.End, cur.Time.End)
		cur.RecomputePlayed()
	}
	m.out = append(m.out, cur)
	m.correctRounding()
}

// correctRounding snaps the newest segment's start to its predecessor's end
// when the two still overlap after truncation to the backend's granularity.
func (m *merger) correctRounding() {
	n := len(m.out)
	if n < 2 {
		return
	}
	prev, next := &m.out[n-2], &m.out[n-1]
	if prev.Source != next.Source {
		return
	}
	unit := m.opts.RoundingToleranceMs
	if prev.Time.End > next.Time.Begin && prev.Time.End/unit > next.Time.Begin/unit {
		next.Time.Begin = prev.Time.End
		if next.Time.End < next.Time.Begin {
			next.Time.End = next.Time.Begin
		}
		next.RecomputePlayed()
	}
}

// sampleRange returns the usable sample offset of a canonical candidate. An
// offset that is inverted or falls outside the window is logged and dropped.
func (m *merger) sampleRange(source string, offset int64, cand *match.Candidate) *match.Range {
	if cand == nil || cand.SampleOffset == nil {
		return nil
	}
	r := *cand.SampleOffset
	limit := m.opts.WindowMs + m.opts.RoundingToleranceMs
	if r.Begin < 0 || !r.Valid() || r.End > limit {
		logMalformed(m.opts.Logger, source, offset, cand.CanonicalID,
			fmt.Errorf("%w: sample offset [%d, %d]", services.ErrMalformed, r.Begin, r.End))
		return nil
	}
	return &r
}

// adoptPrevious swaps the alternate matching previousID into the canonical
// slot. The former canonical moves into the alternates and the score becomes
// 100 because continuity with the previous window is itself strong evidence.
func adoptPrevious(cur match.Segment, previousID string) (match.Segment, bool) {
	if cur.Canonical == nil || previousID == "" || cur.CanonicalID() == previousID {
		return cur, false
	}
	pos := -1
	for i, alt := range cur.Alternates {
		if alt.CanonicalID == previousID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return cur, false
	}

	promoted := cur.Alternates[pos].Clone()
	rest := make([]match.Candidate, 0, len(cur.Alternates))
	rest = append(rest, cur.Alternates[:pos]...)
	rest = append(rest, cur.Alternates[pos+1:]...)
	demoted := *cur.Canonical

	cur.Canonical = &promoted
	cur.Alternates = match.UnionAlternates(promoted.CanonicalID, rest, []match.Candidate{demoted})
	cur.Score = 100
	cur.DBTime = nil
	if promoted.DBOffset != nil {
		db := *promoted.DBOffset
		cur.DBTime = &db
	}
	return cur, true
}

func checkEvents(events []match.WindowEvent) error {
	for i, event := range events {
		if err := event.Validate(); err != nil {
			return services.Wrap(services.ErrInvariant, "reconcile", "merge", event.Source, err)
		}
		if i == 0 {
			continue
		}
		prev := events[i-1]
		if prev.Source == event.Source && event.OffsetMs <= prev.OffsetMs {
			return services.Wrap(services.ErrInvariant, "reconcile", "merge",
				fmt.Sprintf("%s: window at %dms follows %dms", event.Source, event.OffsetMs, prev.OffsetMs), nil)
		}
	}
	return nil
}

func logMalformed(logger *slog.Logger, source string, offset int64, canonicalID string, err error) {
	logging.WarnWithContext(logger, "malformed candidate data ignored", "malformed_candidate",
		logging.String(logging.FieldSource, source),
		logging.Int64("window_offset_ms", offset),
		logging.String("canonical_id", canonicalID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the raw recognition response for this window"),
		logging.String(logging.FieldImpact, "segment boundary falls back to the window edges"),
	)
}
