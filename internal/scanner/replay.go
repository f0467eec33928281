package scanner

import (
	"context"

	"acrscan/internal/export"
	"acrscan/internal/logging"
	"acrscan/internal/match"
)

// Replay rebuilds a report from a saved events dump without probing. Events
// are grouped per source in order of first appearance and reconciled exactly
// as ScanFile would have. The scanner's window length should match
// dump.WindowMs.
func (s *Scanner) Replay(ctx context.Context, target string, dump export.EventDump) Report {
	var order []string
	files := make(map[string]*FileResult)
	for _, kind := range s.opts.Kinds {
		for _, event := range dump.Events[kind] {
			res, ok := files[event.Source]
			if !ok {
				res = &FileResult{Source: event.Source, Events: make(map[match.Kind][]match.WindowEvent)}
				files[event.Source] = res
				order = append(order, event.Source)
			}
			res.Events[kind] = append(res.Events[kind], event)
			res.Windows = max(res.Windows, len(res.Events[kind]))
		}
	}

	report := Report{Target: target, IsDir: len(order) > 1}
	for _, source := range order {
		res := files[source]
		if s.opts.WithDuration {
			if err := s.reconcile(ctx, res); err != nil {
				res.Err = err
				logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "reconciliation rejected", "reconcile_invariant",
					logging.String(logging.FieldSource, source),
					logging.Error(err),
					logging.String(logging.FieldImpact, "no report rows for this file"),
				)
			}
		}
		report.Files = append(report.Files, *res)
	}
	return report
}
