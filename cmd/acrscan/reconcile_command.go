package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"acrscan/internal/config"
	"acrscan/internal/export"
	"acrscan/internal/match"
	"acrscan/internal/scanner"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		output     string
		noFilter   bool
		format     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile <events.json>",
		Short: "Rebuild merged and filtered reports from a saved events dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			reportFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			dump, err := export.ReadEvents(path)
			if err != nil {
				return err
			}

			opts := scanner.OptionsFromConfig(cfg)
			if dump.WindowMs > 0 {
				opts.WindowMs = dump.WindowMs
			}
			opts.Kinds = dumpKinds(dump)
			opts.WithDuration = true
			opts.FilterResults = !noFilter
			s := scanner.New(nil, opts, scanner.WithLogger(logger))

			prefix := strings.TrimSpace(output)
			if prefix == "" {
				prefix = strings.TrimSuffix(path, "_events.json")
			} else if prefix, err = config.ExpandPath(prefix); err != nil {
				return err
			}

			report := s.Replay(cmd.Context(), path, dump)
			written, err := s.WriteReports(report, prefix, reportFormat)
			if err != nil {
				return err
			}

			final := export.StageMerged
			if s.Options().FilterResults {
				final = export.StageFiltered
			}
			if jsonOutput {
				view := make(map[match.Kind][]export.Record, len(s.Options().Kinds))
				for _, kind := range s.Options().Kinds {
					view[kind] = export.Records(kind, report.Segments(kind, final))
				}
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			for _, kind := range s.Options().Kinds {
				segs := report.Segments(kind, final)
				if len(segs) == 0 {
					continue
				}
				fmt.Fprintf(out, "%s (%s)\n", kind, final)
				fmt.Fprintln(out, renderSegments(segs))
			}
			for _, file := range report.Files {
				if file.Err != nil {
					fmt.Fprintf(out, "Skipped %s: %v\n", file.Source, file.Err)
				}
			}
			for _, p := range written {
				fmt.Fprintf(out, "Wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Report prefix (defaults to the dump path without _events.json)")
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "Skip the gap filter and stop after merging")
	cmd.Flags().StringVar(&format, "format", "csv", "Report format: csv or json")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the reconciled records as JSON")
	return cmd
}

// dumpKinds returns the kinds present in dump in export order.
func dumpKinds(dump export.EventDump) []match.Kind {
	var kinds []match.Kind
	for _, kind := range match.Kinds() {
		if _, ok := dump.Events[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func renderSegments(segs []match.Segment) string {
	rows := make([][]string, 0, len(segs))
	for _, seg := range segs {
		rows = append(rows, []string{
			filepath.Base(seg.Source),
			export.Clock(seg.Time.Begin),
			export.Clock(seg.Time.End),
			fmt.Sprintf("%.1fs", float64(seg.PlayedMs)/1000),
			seg.Status.String(),
			seg.Title(),
			fmt.Sprintf("%d", seg.Score),
			seg.CanonicalID(),
		})
	}
	return renderTable([]column{
		{header: "Source", maxWidth: 40},
		{header: "Start"},
		{header: "End"},
		{header: "Played", align: alignRight},
		{header: "Status"},
		{header: "Title", maxWidth: 40},
		{header: "Score", align: alignRight},
		{header: "ID"},
	}, rows)
}
