package reconcile

import "acrscan/internal/match"

// CandidateStats aggregates how a canonical candidate fared across a run.
type CandidateStats struct {
	Occurrences int `json:"occurrences"`
	ScoreSum    int `json:"score_sum"`
}

// Stats maps canonical IDs to their aggregates.
type Stats map[string]CandidateStats

// BuildStats counts OK segments per canonical ID. Segments of any other status
// are ignored.
func BuildStats(segments []match.Segment) Stats {
	stats := make(Stats)
	for _, seg := range segments {
		if seg.Status != match.StatusOK || seg.Canonical == nil {
			continue
		}
		entry := stats[seg.Canonical.CanonicalID]
		entry.Occurrences++
		entry.ScoreSum += seg.Score
		stats[seg.Canonical.CanonicalID] = entry
	}
	return stats
}

// Lookup returns the aggregate for id, zero when unseen.
func (s Stats) Lookup(id string) CandidateStats {
	return s[id]
}
