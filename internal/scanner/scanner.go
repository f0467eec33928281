package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"acrscan/internal/config"
	"acrscan/internal/export"
	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/recognizer"
	"acrscan/internal/reconcile"
	"acrscan/internal/services"
)

// CodeUnavailable marks a window whose recognition kept failing transiently
// after every retry.
const CodeUnavailable = -1

// Options tunes a scan.
type Options struct {
	WindowMs      int64
	Kinds         []match.Kind
	WithDuration  bool
	FilterResults bool
	Workers       int
	Reconcile     reconcile.Options
}

// OptionsFromConfig derives scan options from the [scan] section.
func OptionsFromConfig(cfg *config.Config) Options {
	windowMs := cfg.WindowMs()
	return Options{
		WindowMs:      windowMs,
		Kinds:         recognizer.KindsFor(cfg.Scan.ScanType),
		WithDuration:  cfg.Scan.WithDuration,
		FilterResults: cfg.Scan.WithDuration && cfg.Scan.FilterResults,
		Workers:       cfg.Scan.Workers,
		Reconcile: reconcile.Options{
			WindowMs:            windowMs,
			TitleThreshold:      cfg.Scan.TitleThreshold,
			TimeThresholdMs:     cfg.Scan.TimeThresholdMs,
			RoundingToleranceMs: cfg.Scan.RoundingToleranceMs,
			SustainedMs:         cfg.Scan.SustainedMs,
			ResolveGaps:         cfg.Scan.WithDuration && cfg.Scan.FilterResults,
		},
	}
}

// Stages lists the report stages the options produce, in export order.
func (o Options) Stages() []export.Stage {
	stages := []export.Stage{export.StageRaw}
	if o.WithDuration {
		stages = append(stages, export.StageMerged)
		if o.FilterResults {
			stages = append(stages, export.StageFiltered)
		}
	}
	return stages
}

func (o Options) normalized() Options {
	if o.WindowMs <= 0 {
		o.WindowMs = reconcile.DefaultWindowMs
	}
	if len(o.Kinds) == 0 {
		o.Kinds = match.Kinds()
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if !o.WithDuration {
		o.FilterResults = false
	}
	o.Reconcile.WindowMs = o.WindowMs
	o.Reconcile.ResolveGaps = o.FilterResults
	return o
}

// Scanner probes media files window by window.
type Scanner struct {
	recognizer recognizer.Recognizer
	opts       Options
	progress   Progress
	logger     *slog.Logger
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithProgress renders per-file progress.
func WithProgress(p Progress) Option {
	return func(s *Scanner) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Scanner.
func New(rec recognizer.Recognizer, opts Options, options ...Option) *Scanner {
	s := &Scanner{
		recognizer: rec,
		opts:       opts.normalized(),
		progress:   nopProgress{},
		logger:     logging.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scanner")
	return s
}

// Options returns the effective scan options.
func (s *Scanner) Options() Options {
	return s.opts
}

// FileResult is the outcome of scanning one source file.
type FileResult struct {
	Source        string
	DurationMs    int64
	Windows       int
	CachedWindows int
	Events        map[match.Kind][]match.WindowEvent
	Results       map[match.Kind]reconcile.Result
	// TruncatedBy is the decode failure that stopped probing early. The
	// windows probed before it are still reconciled.
	TruncatedBy error
	// Err is set when the file produced no usable output.
	Err error
}

// Segments returns the segments of kind for the given report stage.
func (f FileResult) Segments(kind match.Kind, stage export.Stage) []match.Segment {
	if f.Err != nil {
		return nil
	}
	switch stage {
	case export.StageRaw:
		events := f.Events[kind]
		segs := make([]match.Segment, 0, len(events))
		for _, event := range events {
			segs = append(segs, match.NewSegment(event))
		}
		return segs
	case export.StageMerged:
		return f.Results[kind].Merged
	case export.StageFiltered:
		return f.Results[kind].Resolved
	default:
		return nil
	}
}

// ScanFile probes every window of path. The returned error is reserved for
// conditions that end the whole run: cancellation and rejected credentials.
// Anything else is reported on the FileResult.
func (s *Scanner) ScanFile(ctx context.Context, path string) (FileResult, error) {
	ctx = services.WithSource(ctx, path)
	logger := logging.WithContext(ctx, s.logger)
	res := FileResult{Source: path}

	duration, err := s.recognizer.TotalDurationMs(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if services.AbortsRun(err) {
			return res, err
		}
		res.Err = err
		logging.WarnWithContext(logger, "file skipped", "file_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the file is readable media"),
			logging.String(logging.FieldImpact, "no report rows for this file"),
		)
		return res, nil
	}
	res.DurationMs = duration
	logger.Info("scanning file",
		logging.Int64("duration_ms", duration),
		logging.Int64("windows", windowCount(duration, s.opts.WindowMs)),
	)

	tracker := s.progress.Track(filepath.Base(path), windowCount(duration, s.opts.WindowMs))
	events := make(map[match.Kind][]match.WindowEvent, len(s.opts.Kinds))

probing:
	for offset := int64(0); offset < duration; offset += s.opts.WindowMs {
		if err := ctx.Err(); err != nil {
			tracker.Abort()
			return FileResult{Source: path}, err
		}
		probe, err := s.recognizer.Probe(ctx, path, offset, s.opts.WindowMs)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			tracker.Abort()
			return FileResult{Source: path}, ctx.Err()
		case services.AbortsRun(err):
			tracker.Abort()
			return res, err
		case services.AbortsFile(err):
			res.TruncatedBy = err
			logging.WarnWithContext(logger, "probing stopped early", "file_truncated",
				logging.Int64(logging.FieldWindowMs, offset),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the source cannot be decoded past this offset"),
				logging.String(logging.FieldImpact, "segments end at the last readable window"),
			)
			break probing
		case services.Retryable(err):
			probe = unavailable(path, offset, s.opts.WindowMs, s.opts.Kinds, err)
			logging.WarnWithContext(logger, "window not recognized", "window_unavailable",
				logging.Int64(logging.FieldWindowMs, offset),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the recognition service kept failing; rescan later"),
				logging.String(logging.FieldImpact, "window recorded with an error status"),
			)
		default:
			tracker.Abort()
			res.Err = err
			logging.WarnWithContext(logger, "file skipped", "file_skipped",
				logging.Int64(logging.FieldWindowMs, offset),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no report rows for this file"),
			)
			return res, nil
		}

		for _, kind := range s.opts.Kinds {
			event, ok := probe.Events[kind]
			if !ok {
				continue
			}
			events[kind] = append(events[kind], event)
		}
		res.Windows++
		if probe.Cached {
			res.CachedWindows++
		}
		logger.Debug("window probed",
			logging.String("from", export.Clock(offset)),
			logging.String("to", export.Clock(offset+s.opts.WindowMs)),
			logging.String("music", eventTitle(probe.Events[match.KindMusic])),
			logging.String("custom", eventTitle(probe.Events[match.KindCustom])),
			logging.Bool("cached", probe.Cached),
		)
		tracker.Increment()
	}
	res.Events = events

	if s.opts.WithDuration {
		if err := s.reconcile(ctx, &res); err != nil {
			tracker.Abort()
			res.Err = err
			logging.ErrorWithContext(logger, "reconciliation rejected", "reconcile_invariant",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun offline with 'acrscan reconcile' on the events dump"),
				logging.String(logging.FieldImpact, "no report rows for this file"),
			)
			return res, nil
		}
	}
	tracker.Done()
	return res, nil
}

func (s *Scanner) reconcile(ctx context.Context, res *FileResult) error {
	res.Results = make(map[match.Kind]reconcile.Result, len(s.opts.Kinds))
	for _, kind := range s.opts.Kinds {
		opts := s.opts.Reconcile
		opts.Logger = logging.WithContext(services.WithKind(ctx, string(kind)), s.logger)
		result, err := reconcile.Run(res.Events[kind], opts)
		if err != nil {
			res.Results = nil
			return fmt.Errorf("%s: %w", kind, err)
		}
		res.Results[kind] = result
	}
	return nil
}

// ScanFiles scans paths in parallel, at most Options.Workers at a time.
// Results keep the order of paths.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := s.ScanFile(gctx, path)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func windowCount(durationMs, windowMs int64) int64 {
	if durationMs <= 0 || windowMs <= 0 {
		return 0
	}
	return (durationMs + windowMs - 1) / windowMs
}

func unavailable(source string, offset, length int64, kinds []match.Kind, err error) recognizer.Probe {
	probe := recognizer.Probe{Events: make(map[match.Kind]match.WindowEvent, len(kinds))}
	for _, kind := range kinds {
		probe.Events[kind] = match.WindowEvent{
			Source:   source,
			OffsetMs: offset,
			LengthMs: length,
			Status:   match.StatusOther,
			Code:     CodeUnavailable,
			Message:  err.Error(),
		}
	}
	return probe
}

func eventTitle(event match.WindowEvent) string {
	if event.Primary == nil {
		return ""
	}
	return event.Primary.Title
}
