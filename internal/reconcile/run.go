package reconcile

import (
	"acrscan/internal/logging"
	"acrscan/internal/match"
)

// Result carries every stage of one reconciliation run.
type Result struct {
	Merged   []match.Segment
	Resolved []match.Segment
	Stats    Stats
}

// Final returns the resolved segments, or the merged ones when gap
// resolution was disabled.
func (r Result) Final() []match.Segment {
	if r.Resolved != nil {
		return r.Resolved
	}
	return r.Merged
}

// Run merges events, builds fresh stats, optionally resolves gaps and checks
// the output invariants. Any error is marked ErrInvariant; callers report and
// skip the affected file.
func Run(events []match.WindowEvent, opts Options) (Result, error) {
	opts = opts.normalized()

	merged, err := Merge(events, opts)
	if err != nil {
		return Result{}, err
	}
	res := Result{Merged: merged, Stats: BuildStats(merged)}
	if err := CheckInvariants(merged, opts.RoundingToleranceMs); err != nil {
		return res, err
	}

	if opts.ResolveGaps {
		resolved, err := ResolveGaps(merged, res.Stats, opts)
		if err != nil {
			return res, err
		}
		if err := CheckInvariants(resolved, opts.RoundingToleranceMs); err != nil {
			return res, err
		}
		res.Resolved = resolved
	}

	opts.Logger.Debug("reconciliation complete",
		logging.Int("window_count", len(events)),
		logging.Int("merged_count", len(res.Merged)),
		logging.Int("resolved_count", len(res.Resolved)),
		logging.Int("candidate_count", len(res.Stats)),
	)
	return res, nil
}
