package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"acrscan/internal/config"
	"acrscan/internal/export"
	"acrscan/internal/logging"
	"acrscan/internal/preflight"
	"acrscan/internal/probecache"
	"acrscan/internal/recognizer"
	"acrscan/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		output        string
		withDuration  bool
		filterResults bool
		scanType      string
		workers       int
		noCache       bool
		format        string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "scan <file-or-folder>",
		Short: "Recognize every window of a media file or folder and export the matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			flags := cmd.Flags()
			if flags.Changed("with-duration") {
				cfg.Scan.WithDuration = withDuration
			}
			if flags.Changed("filter-results") {
				cfg.Scan.FilterResults = filterResults
			}
			if flags.Changed("scan-type") {
				cfg.Scan.ScanType = strings.ToLower(strings.TrimSpace(scanType))
			}
			if flags.Changed("workers") {
				cfg.Scan.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			reportFormat, err := parseFormat(format)
			if err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if !ctx.skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), &cfg, true)); len(failed) > 0 {
					return preflightError(failed)
				}
			}

			var cache recognizer.Cache
			if cfg.Cache.Enabled && !noCache {
				store, err := probecache.Open(cfg.ProbeCacheDir(), logger)
				if err != nil {
					logging.WarnWithContext(logger, "probe cache unavailable", "probe_cache_unavailable",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "another scan may hold the cache; rerun with --no-cache"),
						logging.String(logging.FieldImpact, "every window is identified remotely"),
					)
				} else {
					defer store.Close()
					cache = store
				}
			}

			target, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(output) != "" {
				if output, err = config.ExpandPath(output); err != nil {
					return err
				}
			}

			options := []scanner.Option{scanner.WithLogger(logger)}
			if !jsonOutput && isTerminal(cmd.OutOrStdout()) {
				options = append(options, scanner.WithProgress(scanner.NewBars(cmd.OutOrStdout())))
			}
			s := scanner.New(ctx.newRecognizer(&cfg, cache, logger), scanner.OptionsFromConfig(&cfg), options...)

			var recorder scanner.Recorder
			if store, err := ctx.openHistory(); err != nil {
				logging.WarnWithContext(logger, "scan history unavailable", "history_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "this scan will not appear in 'acrscan history'"),
				)
			} else {
				defer store.Close()
				recorder = store
			}

			outcome, runErr := s.Run(cmd.Context(), scanner.Job{Target: target, Output: output, Format: reportFormat}, recorder)
			if runErr != nil && len(outcome.Report.Files) == 0 {
				return runErr
			}
			if jsonOutput {
				if err := writeJSON(cmd, scanView(outcome)); err != nil {
					return err
				}
			} else {
				renderScan(cmd, outcome)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Report prefix (defaults to the target path)")
	cmd.Flags().BoolVarP(&withDuration, "with-duration", "w", false, "Merge consecutive windows into timed segments")
	cmd.Flags().BoolVar(&filterResults, "filter-results", false, "Collapse short no-result gaps (requires --with-duration)")
	cmd.Flags().StringVar(&scanType, "scan-type", "", "Result kinds to export: music, custom or both")
	cmd.Flags().IntVar(&workers, "workers", 0, "Files scanned in parallel for folders")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore the probe cache")
	cmd.Flags().StringVar(&format, "format", "csv", "Report format: csv or json")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the scan summary as JSON")
	return cmd
}

func parseFormat(value string) (export.Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return export.FormatCSV, nil
	case "json":
		return export.FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report format %q (want csv or json)", value)
	}
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed (run 'acrscan check' for details): %s", strings.Join(parts, "; "))
}

func renderScan(cmd *cobra.Command, outcome scanner.Outcome) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(outcome.Report.Files))
	for _, file := range outcome.Report.Files {
		rows = append(rows, []string{
			filepath.Base(file.Source),
			export.Clock(file.DurationMs),
			fmt.Sprintf("%d", file.Windows),
			fmt.Sprintf("%d", file.CachedWindows),
			fileState(file),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]column{
			{header: "File", maxWidth: 60},
			{header: "Duration", align: alignRight},
			{header: "Windows", align: alignRight},
			{header: "Cached", align: alignRight},
			{header: "Result", maxWidth: 60},
		}, rows))
	}
	for _, path := range outcome.Written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	if outcome.ScanID != "" {
		fmt.Fprintf(out, "Scan %s %s\n", outcome.ScanID, outcome.Status)
	} else if outcome.Status != "" {
		fmt.Fprintf(out, "Scan %s\n", outcome.Status)
	}
}

func fileState(file scanner.FileResult) string {
	switch {
	case file.Err != nil:
		return "failed: " + file.Err.Error()
	case file.TruncatedBy != nil:
		return "truncated: " + file.TruncatedBy.Error()
	default:
		return "ok"
	}
}

type scanFileView struct {
	Source        string `json:"source"`
	DurationMs    int64  `json:"duration_ms"`
	Windows       int    `json:"windows"`
	CachedWindows int    `json:"cached_windows"`
	Truncated     string `json:"truncated,omitempty"`
	Error         string `json:"error,omitempty"`
}

type scanSummaryView struct {
	ScanID  string         `json:"scan_id,omitempty"`
	Status  string         `json:"status"`
	Prefix  string         `json:"prefix"`
	Written []string       `json:"written"`
	Files   []scanFileView `json:"files"`
}

func scanView(outcome scanner.Outcome) scanSummaryView {
	view := scanSummaryView{
		ScanID:  outcome.ScanID,
		Status:  string(outcome.Status),
		Prefix:  outcome.Prefix,
		Written: outcome.Written,
		Files:   make([]scanFileView, 0, len(outcome.Report.Files)),
	}
	if view.Written == nil {
		view.Written = []string{}
	}
	for _, file := range outcome.Report.Files {
		fv := scanFileView{
			Source:        file.Source,
			DurationMs:    file.DurationMs,
			Windows:       file.Windows,
			CachedWindows: file.CachedWindows,
		}
		if file.TruncatedBy != nil {
			fv.Truncated = file.TruncatedBy.Error()
		}
		if file.Err != nil {
			fv.Error = file.Err.Error()
		}
		view.Files = append(view.Files, fv)
	}
	return view
}
