package scanner

import (
	"context"
	"os"
	"time"

	"acrscan/internal/export"
	"acrscan/internal/logging"
	"acrscan/internal/match"
	"acrscan/internal/services"
)

// Report is the outcome of scanning a file or folder.
type Report struct {
	Target string
	IsDir  bool
	Files  []FileResult
}

// Segments concatenates the segments of every usable file in file order.
func (r Report) Segments(kind match.Kind, stage export.Stage) []match.Segment {
	var out []match.Segment
	for _, file := range r.Files {
		out = append(out, file.Segments(kind, stage)...)
	}
	return out
}

// Events concatenates the probed events of kind across files.
func (r Report) Events(kind match.Kind) []match.WindowEvent {
	var out []match.WindowEvent
	for _, file := range r.Files {
		if file.Err != nil {
			continue
		}
		out = append(out, file.Events[kind]...)
	}
	return out
}

// Totals summarizes a report.
type Totals struct {
	Files     int
	Failed    int
	Truncated int
	Windows   int
	Cached    int
}

// Totals counts files and windows.
func (r Report) Totals() Totals {
	t := Totals{Files: len(r.Files)}
	for _, file := range r.Files {
		switch {
		case file.Err != nil:
			t.Failed++
		case file.TruncatedBy != nil:
			t.Truncated++
		}
		t.Windows += file.Windows
		t.Cached += file.CachedWindows
	}
	return t
}

// Scan scans target, which may be a single file or a folder of media files.
func (s *Scanner) Scan(ctx context.Context, target string) (Report, error) {
	info, err := os.Stat(target)
	if err != nil {
		return Report{}, services.Wrap(services.ErrNotFound, "scanner", "stat target", target, err)
	}
	report := Report{Target: target, IsDir: info.IsDir()}
	started := time.Now()

	if !report.IsDir {
		res, err := s.ScanFile(ctx, target)
		report.Files = []FileResult{res}
		s.progress.Wait()
		return report, err
	}

	paths, err := ListMedia(target)
	if err != nil {
		return report, err
	}
	if len(paths) == 0 {
		logging.WarnWithContext(s.logger, "folder holds no media files", "empty_folder",
			logging.String("folder", target),
			logging.String(logging.FieldImpact, "no reports written"),
		)
	}
	report.Files, err = s.ScanFiles(ctx, paths)
	s.progress.Wait()
	s.logger.Info("folder scanned",
		logging.String("folder", target),
		logging.Int("file_count", len(paths)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return report, err
}

// WriteReports exports every stage of report under prefix and saves the raw
// events dump. It returns the paths written; empty report sets are skipped.
func (s *Scanner) WriteReports(report Report, prefix string, format export.Format) ([]string, error) {
	var written []string
	dump := export.EventDump{WindowMs: s.opts.WindowMs, Events: make(map[match.Kind][]match.WindowEvent)}
	for _, kind := range s.opts.Kinds {
		dump.Events[kind] = report.Events(kind)
		for _, stage := range s.opts.Stages() {
			records := export.Records(kind, report.Segments(kind, stage))
			if len(records) == 0 {
				continue
			}
			path := export.ReportPath(prefix, stage, kind, format)
			if err := export.Write(path, format, kind, records); err != nil {
				return written, err
			}
			written = append(written, path)
			s.logger.Info("report written",
				logging.String("path", path),
				logging.String(logging.FieldKind, string(kind)),
				logging.String("stage", string(stage)),
				logging.Int("rows", len(records)),
			)
		}
	}
	path := export.EventsPath(prefix)
	if err := export.WriteEvents(path, dump); err != nil {
		return written, err
	}
	return append(written, path), nil
}
