package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"acrscan/internal/export"
	"acrscan/internal/history"
	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/services"
)

// Recorder persists scan runs. *history.Store satisfies it.
type Recorder interface {
	BeginScan(ctx context.Context, target string, windowMs int64) (history.Scan, error)
	RecordSegments(ctx context.Context, scanID string, kind match.Kind, stage history.Stage, segments []match.Segment) error
	FinishScan(ctx context.Context, scanID string, status history.Status, fileCount int, scanErr error) error
}

// Job describes one scan invocation.
type Job struct {
	Target string
	// Output overrides the report prefix; empty writes beside the target.
	Output string
	Format export.Format
}

// Outcome is what Run produced.
type Outcome struct {
	Report  Report
	ScanID  string
	Prefix  string
	Written []string
	Status  history.Status
}

// Run scans job.Target while holding the report lock, writes the reports and
// records the run when recorder is non-nil.
func (s *Scanner) Run(ctx context.Context, job Job, recorder Recorder) (Outcome, error) {
	info, err := os.Stat(job.Target)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "scanner", "stat target", job.Target, err)
	}
	if job.Format == "" {
		job.Format = export.FormatCSV
	}
	out := Outcome{Prefix: export.Prefix(job.Target, job.Output, info.IsDir())}

	if err := os.MkdirAll(filepath.Dir(out.Prefix), 0o755); err != nil {
		return out, services.Wrap(services.ErrConfiguration, "scanner", "create report directory", out.Prefix, err)
	}
	lockPath := export.LockPath(out.Prefix)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return out, services.Wrap(services.ErrExternalTool, "scanner", "acquire lock", lockPath, err)
	}
	if !ok {
		return out, services.Wrap(services.ErrValidation, "scanner", "acquire lock",
			fmt.Sprintf("another scan is writing reports to %s", out.Prefix), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release report lock", logging.String("lock", lockPath), logging.Error(err))
		}
	}()

	if recorder != nil {
		scan, err := recorder.BeginScan(ctx, job.Target, s.opts.WindowMs)
		if err != nil {
			return out, fmt.Errorf("record scan start: %w", err)
		}
		out.ScanID = scan.ID
		ctx = services.WithScanID(ctx, scan.ID)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("scan started",
		logging.String("target", job.Target),
		logging.String("prefix", out.Prefix),
		logging.Int64("window_length_ms", s.opts.WindowMs),
	)

	report, scanErr := s.Scan(ctx, job.Target)
	out.Report = report
	if scanErr == nil {
		out.Written, scanErr = s.WriteReports(report, out.Prefix, job.Format)
	}
	out.Status = statusFor(report, scanErr)

	if recorder != nil {
		// The run may have been cancelled; the record is closed regardless.
		recordCtx := context.WithoutCancel(ctx)
		if scanErr == nil {
			if err := s.record(recordCtx, recorder, out.ScanID, report); err != nil {
				logging.WarnWithContext(logger, "scan history incomplete", "history_write_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "reports were written but history lacks segments"),
				)
			}
		}
		totals := report.Totals()
		if err := recorder.FinishScan(recordCtx, out.ScanID, out.Status, totals.Files, scanErr); err != nil {
			logging.WarnWithContext(logger, "scan history not closed", "history_write_failed",
				logging.Error(err),
			)
		}
	}

	totals := report.Totals()
	logger.Info("scan finished",
		logging.String("status", string(out.Status)),
		logging.Int("file_count", totals.Files),
		logging.Int("failed_files", totals.Failed),
		logging.Int("window_count", totals.Windows),
		logging.Int("cached_windows", totals.Cached),
	)
	return out, scanErr
}

func (s *Scanner) record(ctx context.Context, recorder Recorder, scanID string, report Report) error {
	var errs []error
	for _, kind := range s.opts.Kinds {
		for _, stage := range s.opts.Stages() {
			if err := recorder.RecordSegments(ctx, scanID, kind, history.Stage(stage), report.Segments(kind, stage)); err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", kind, stage, err))
			}
		}
	}
	return errors.Join(errs...)
}

func statusFor(report Report, err error) history.Status {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return history.StatusCancelled
		}
		return history.StatusFailed
	}
	totals := report.Totals()
	switch {
	case totals.Files > 0 && totals.Failed == totals.Files:
		return history.StatusFailed
	case totals.Failed > 0 || totals.Truncated > 0:
		return history.StatusPartial
	default:
		return history.StatusCompleted
	}
}
