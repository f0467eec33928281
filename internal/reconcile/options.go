package reconcile

import (
	"log/slog"

	"acrscan/internal/logging"
	"acrscan/internal/textutil"
)

const (
	// DefaultWindowMs is the length of one probed window.
	DefaultWindowMs int64 = 10_000
	// DefaultRoundingToleranceMs absorbs the second granularity of backend offsets.
	DefaultRoundingToleranceMs int64 = 1_000
	// DefaultSustainedMs is the played duration above which a match is certain.
	DefaultSustainedMs int64 = 10_000
)

// Options tunes a reconciliation run. Zero values fall back to defaults.
type Options struct {
	WindowMs            int64
	TitleThreshold      int
	TimeThresholdMs     int64
	RoundingToleranceMs int64
	SustainedMs         int64
	// ResolveGaps enables the gap resolver pass in Run.
	ResolveGaps bool
	Logger      *slog.Logger
}

// DefaultOptions returns the stock tuning with gap resolution enabled.
func DefaultOptions() Options {
	return Options{
		WindowMs:            DefaultWindowMs,
		TitleThreshold:      textutil.DefaultTitleThreshold,
		TimeThresholdMs:     DefaultWindowMs,
		RoundingToleranceMs: DefaultRoundingToleranceMs,
		SustainedMs:         DefaultSustainedMs,
		ResolveGaps:         true,
	}
}

func (o Options) normalized() Options {
	if o.WindowMs <= 0 {
		o.WindowMs = DefaultWindowMs
	}
	if o.TitleThreshold <= 0 {
		o.TitleThreshold = textutil.DefaultTitleThreshold
	}
	if o.TimeThresholdMs <= 0 {
		o.TimeThresholdMs = o.WindowMs
	}
	if o.RoundingToleranceMs <= 0 {
		o.RoundingToleranceMs = DefaultRoundingToleranceMs
	}
	if o.SustainedMs <= 0 {
		o.SustainedMs = DefaultSustainedMs
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}
