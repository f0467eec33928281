package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"acrscan/internal/export"
	"acrscan/internal/history"
	"acrscan/internal/match"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune past scans",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				scans, err := store.ListScans(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]scanRecordView, 0, len(scans))
					for _, scan := range scans {
						views = append(views, scanRecord(scan))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(scans) == 0 {
					fmt.Fprintln(out, "No scans recorded")
					return nil
				}
				rows := make([][]string, 0, len(scans))
				for _, scan := range scans {
					rows = append(rows, []string{
						shortID(scan.ID),
						scan.Target,
						string(scan.Status),
						fmt.Sprintf("%d", scan.FileCount),
						formatTime(scan.StartedAt),
						formatDuration(scan.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID"},
					{header: "Target", maxWidth: 60},
					{header: "Status"},
					{header: "Files", align: alignRight},
					{header: "Started"},
					{header: "Took", align: alignRight},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of scans to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var stageFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a scan and its stored segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind match.Kind
			if kindFlag != "" {
				parsed, err := match.ParseKind(kindFlag)
				if err != nil {
					return err
				}
				kind = parsed
			}
			stage := history.Stage(stageFlag)
			switch stage {
			case "", history.StageRaw, history.StageMerged, history.StageFiltered:
			default:
				return fmt.Errorf("unknown stage %q (want raw, merged or filtered)", stageFlag)
			}

			return ctx.withHistory(func(store *history.Store) error {
				scan, err := store.GetScan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				segments, err := store.ScanSegments(cmd.Context(), scan.ID, kind, stage)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, scanDetailView{Scan: scanRecord(scan), Segments: segmentViews(segments)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scan:     %s\n", scan.ID)
				fmt.Fprintf(out, "Target:   %s\n", scan.Target)
				fmt.Fprintf(out, "Status:   %s\n", scan.Status)
				fmt.Fprintf(out, "Files:    %d\n", scan.FileCount)
				fmt.Fprintf(out, "Window:   %dms\n", scan.WindowMs)
				fmt.Fprintf(out, "Started:  %s\n", formatTime(scan.StartedAt))
				fmt.Fprintf(out, "Finished: %s\n", formatTime(scan.FinishedAt))
				if scan.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", scan.ErrorMessage)
				}
				if len(segments) == 0 {
					fmt.Fprintln(out, "No segments stored")
					return nil
				}
				rows := make([][]string, 0, len(segments))
				for _, seg := range segments {
					rows = append(rows, []string{
						string(seg.Kind),
						string(seg.Stage),
						filepath.Base(seg.Source),
						export.Clock(seg.StartMs),
						export.Clock(seg.EndMs),
						seg.Status,
						seg.Title,
						fmt.Sprintf("%d", seg.Score),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "Kind"},
					{header: "Stage"},
					{header: "Source", maxWidth: 40},
					{header: "Start"},
					{header: "End"},
					{header: "Status"},
					{header: "Title", maxWidth: 40},
					{header: "Score", align: alignRight},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only show one result kind (music or custom)")
	cmd.Flags().StringVar(&stageFlag, "stage", "", "Only show one stage (raw, merged or filtered)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete scans older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", pluralize(int(removed), "scan", "scans"))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age in days beyond which scans are removed")
	return cmd
}

type scanRecordView struct {
	ID           string `json:"id"`
	Target       string `json:"target"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error,omitempty"`
	FileCount    int    `json:"file_count"`
	WindowMs     int64  `json:"window_ms"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

type segmentView struct {
	Kind        string   `json:"kind"`
	Stage       string   `json:"stage"`
	Source      string   `json:"source"`
	Status      string   `json:"status"`
	StatusCode  int      `json:"status_code"`
	StartMs     int64    `json:"start_ms"`
	EndMs       int64    `json:"end_ms"`
	PlayedMs    int64    `json:"played_ms"`
	Title       string   `json:"title,omitempty"`
	CanonicalID string   `json:"canonical_id,omitempty"`
	Score       int      `json:"score"`
	Alternates  []string `json:"alternates,omitempty"`
}

type scanDetailView struct {
	Scan     scanRecordView `json:"scan"`
	Segments []segmentView  `json:"segments"`
}

func scanRecord(scan history.Scan) scanRecordView {
	view := scanRecordView{
		ID:           scan.ID,
		Target:       scan.Target,
		Status:       string(scan.Status),
		ErrorMessage: scan.ErrorMessage,
		FileCount:    scan.FileCount,
		WindowMs:     scan.WindowMs,
		StartedAt:    scan.StartedAt.UTC().Format(time.RFC3339),
	}
	if !scan.FinishedAt.IsZero() {
		view.FinishedAt = scan.FinishedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func segmentViews(segments []history.Segment) []segmentView {
	out := make([]segmentView, 0, len(segments))
	for _, seg := range segments {
		view := segmentView{
			Kind:        string(seg.Kind),
			Stage:       string(seg.Stage),
			Source:      seg.Source,
			Status:      seg.Status,
			StatusCode:  seg.StatusCode,
			StartMs:     seg.StartMs,
			EndMs:       seg.EndMs,
			PlayedMs:    seg.PlayedMs,
			Title:       seg.Title,
			CanonicalID: seg.CanonicalID,
			Score:       seg.Score,
		}
		for _, alt := range seg.Alternates {
			view.Alternates = append(view.Alternates, alt.CanonicalID)
		}
		out = append(out, view)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
