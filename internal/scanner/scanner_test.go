package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"acrscan/internal/config"
	"acrscan/internal/export"
	"acrscan/internal/history"
	"acrscan/internal/match"
	"acrscan/internal/recognizer"
	"acrscan/internal/services"
	"acrscan/internal/testsupport"
)

func durationOptions() Options {
	return Options{
		WindowMs:      testsupport.WindowMs,
		WithDuration:  true,
		FilterResults: true,
		Workers:       2,
	}
}

// trackAt scripts "a" for the first two windows and no result afterwards.
func trackAt(source string, startMs, _ int64) (recognizer.Probe, error) {
	miss := testsupport.Miss(source, startMs)
	if startMs < 20000 {
		hit := testsupport.Hit(source, startMs, testsupport.Track("a", "Hello", 90))
		return testsupport.ProbeOf(hit, miss), nil
	}
	return testsupport.ProbeOf(miss, miss), nil
}

func TestScanFileProbesWindowsInOrder(t *testing.T) {
	rec := &testsupport.Recognizer{Durations: map[string]int64{"a.mp3": 35000}}
	s := New(rec, Options{WindowMs: testsupport.WindowMs})

	res, err := s.ScanFile(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	want := []int64{0, 10000, 20000, 30000}
	if got := rec.Calls("a.mp3"); !reflect.DeepEqual(got, want) {
		t.Fatalf("offsets = %v, want %v", got, want)
	}
	if res.Windows != 4 || len(res.Events[match.KindMusic]) != 4 || len(res.Events[match.KindCustom]) != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Results != nil {
		t.Fatal("reconciliation ran without duration tracking")
	}
	if got := len(res.Segments(match.KindMusic, export.StageRaw)); got != 4 {
		t.Fatalf("raw segments = %d, want 4", got)
	}
}

func TestScanFileReconcilesPerKind(t *testing.T) {
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 30000},
		Script:    trackAt,
	}
	s := New(rec, durationOptions())

	res, err := s.ScanFile(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	merged := res.Segments(match.KindMusic, export.StageMerged)
	if len(merged) != 2 {
		t.Fatalf("merged = %+v, want two segments", merged)
	}
	if merged[0].CanonicalID() != "a" || merged[0].Time != (match.Range{Begin: 0, End: 20000}) {
		t.Fatalf("first segment = %+v", merged[0])
	}
	if merged[0].Score != 100 {
		t.Fatalf("sustained score = %d, want 100", merged[0].Score)
	}
	if merged[1].Status != match.StatusNoResult {
		t.Fatalf("second segment status = %s", merged[1].Status)
	}
	if custom := res.Segments(match.KindCustom, export.StageMerged); len(custom) != 1 {
		t.Fatalf("custom merged = %+v, want one no-result span", custom)
	}
	if res.Segments(match.KindMusic, export.StageFiltered) == nil {
		t.Fatal("filtered stage missing")
	}
}

func TestScanFileDecodeErrorTruncates(t *testing.T) {
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 40000},
		Script: func(source string, startMs, lengthMs int64) (recognizer.Probe, error) {
			if startMs == 20000 {
				return recognizer.Probe{}, services.Wrap(services.ErrDecode, "media", "extract window", source, nil)
			}
			return trackAt(source, startMs, lengthMs)
		},
	}
	s := New(rec, durationOptions())

	res, err := s.ScanFile(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if !errors.Is(res.TruncatedBy, services.ErrDecode) {
		t.Fatalf("TruncatedBy = %v", res.TruncatedBy)
	}
	if res.Err != nil {
		t.Fatalf("truncated file reported as failed: %v", res.Err)
	}
	if res.Windows != 2 {
		t.Fatalf("windows = %d, want 2", res.Windows)
	}
	if got := rec.Calls("a.mp3"); len(got) != 3 {
		t.Fatalf("probing continued after decode failure: %v", got)
	}
	merged := res.Segments(match.KindMusic, export.StageMerged)
	if len(merged) != 1 || merged[0].Time.End != 20000 {
		t.Fatalf("merged = %+v, want one segment ending at 20000", merged)
	}
}

func TestScanFileExhaustedRetriesRecordWindow(t *testing.T) {
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 30000},
		Script: func(source string, startMs, lengthMs int64) (recognizer.Probe, error) {
			if startMs == 10000 {
				return recognizer.Probe{}, services.Wrap(services.ErrTransient, "acrcloud", "identify", "code 3003", nil)
			}
			miss := testsupport.Miss(source, startMs)
			return testsupport.ProbeOf(miss, miss), nil
		},
	}
	s := New(rec, Options{WindowMs: testsupport.WindowMs, Kinds: []match.Kind{match.KindMusic}})

	res, err := s.ScanFile(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	events := res.Events[match.KindMusic]
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[1].Status != match.StatusOther || events[1].Code != CodeUnavailable {
		t.Fatalf("unavailable window = %+v", events[1])
	}
	if _, ok := res.Events[match.KindCustom]; ok {
		t.Fatal("custom kind recorded although not requested")
	}
}

func TestScanFileConfigurationErrorAbortsRun(t *testing.T) {
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 30000},
		Script: func(string, int64, int64) (recognizer.Probe, error) {
			return recognizer.Probe{}, services.Wrap(services.ErrConfiguration, "acrcloud", "identify", "code 3001", nil)
		},
	}
	s := New(rec, Options{WindowMs: testsupport.WindowMs})

	_, err := s.ScanFile(context.Background(), "a.mp3")
	if !services.AbortsRun(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestScanFileCancellationDiscardsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 50000},
		Script: func(source string, startMs, _ int64) (recognizer.Probe, error) {
			if startMs == 20000 {
				cancel()
			}
			miss := testsupport.Miss(source, startMs)
			return testsupport.ProbeOf(miss, miss), nil
		},
	}
	s := New(rec, Options{WindowMs: testsupport.WindowMs})

	res, err := s.ScanFile(ctx, "a.mp3")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Events != nil || res.Windows != 0 {
		t.Fatalf("partial events kept: %+v", res)
	}
	if got := len(rec.Calls("a.mp3")); got != 3 {
		t.Fatalf("probe calls = %d, want 3", got)
	}
}

func TestScanFileUnreadableDurationSkipsFile(t *testing.T) {
	rec := &testsupport.Recognizer{
		DurationErr: map[string]error{"bad.mp3": services.Wrap(services.ErrDecode, "media", "probe", "bad.mp3", nil)},
	}
	s := New(rec, Options{WindowMs: testsupport.WindowMs})

	res, err := s.ScanFile(context.Background(), "bad.mp3")
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if !errors.Is(res.Err, services.ErrDecode) {
		t.Fatalf("res.Err = %v", res.Err)
	}
	if res.Segments(match.KindMusic, export.StageRaw) != nil {
		t.Fatal("failed file produced segments")
	}
}

func TestScanFilesIsolatesFailures(t *testing.T) {
	rec := &testsupport.Recognizer{
		Durations: map[string]int64{"a.mp3": 20000, "c.mp3": 10000},
		DurationErr: map[string]error{
			"b.mp3": services.Wrap(services.ErrDecode, "media", "probe", "b.mp3", nil),
		},
	}
	s := New(rec, Options{WindowMs: testsupport.WindowMs, Workers: 3})

	results, err := s.ScanFiles(context.Background(), []string{"a.mp3", "b.mp3", "c.mp3"})
	if err != nil {
		t.Fatalf("ScanFiles: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	for i, want := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		if results[i].Source != want {
			t.Fatalf("results[%d] = %s, want %s", i, results[i].Source, want)
		}
	}
	if results[0].Windows != 2 || results[2].Windows != 1 {
		t.Fatalf("healthy files not scanned: %+v", results)
	}
	if results[1].Err == nil {
		t.Fatal("failed file not reported")
	}
	report := Report{Files: results}
	if got := report.Totals(); got.Failed != 1 || got.Windows != 3 {
		t.Fatalf("totals = %+v", got)
	}
	if got := len(report.Segments(match.KindMusic, export.StageRaw)); got != 3 {
		t.Fatalf("concatenated raw segments = %d, want 3", got)
	}
}

func TestListMediaSkipsReportsAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	testsupport.MediaDir(t, dir, "b.mp3", "a.wav", ".hidden.mp3", "a.wav_music.csv", "set_events.json", "set.lock")
	testsupport.MediaDir(t, filepath.Join(dir, "nested"), "c.mp3")

	got, err := ListMedia(dir)
	if err != nil {
		t.Fatalf("ListMedia: %v", err)
	}
	want := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.mp3")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListMedia = %v, want %v", got, want)
	}
}

func TestOptionsStages(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []export.Stage
	}{
		{"raw only", Options{}, []export.Stage{export.StageRaw}},
		{"with duration", Options{WithDuration: true}, []export.Stage{export.StageRaw, export.StageMerged}},
		{"filtered", Options{WithDuration: true, FilterResults: true}, []export.Stage{export.StageRaw, export.StageMerged, export.StageFiltered}},
		{"filter without duration", Options{FilterResults: true}, []export.Stage{export.StageRaw}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.normalized().Stages(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Stages() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithScan(func(s *config.Scan) {
		s.ScanType = "music"
		s.WithDuration = true
		s.FilterResults = true
		s.WindowSeconds = 12
	}))
	opts := OptionsFromConfig(cfg)
	if opts.WindowMs != 12000 || opts.Reconcile.WindowMs != 12000 {
		t.Fatalf("window = %d / %d", opts.WindowMs, opts.Reconcile.WindowMs)
	}
	if !reflect.DeepEqual(opts.Kinds, []match.Kind{match.KindMusic}) {
		t.Fatalf("kinds = %v", opts.Kinds)
	}
	if !opts.Reconcile.ResolveGaps {
		t.Fatal("gap resolution disabled")
	}
}

func TestStatusFor(t *testing.T) {
	ok := FileResult{Source: "a"}
	failed := FileResult{Source: "b", Err: errors.New("boom")}
	truncated := FileResult{Source: "c", TruncatedBy: services.ErrDecode}
	tests := []struct {
		name   string
		report Report
		err    error
		want   history.Status
	}{
		{"completed", Report{Files: []FileResult{ok}}, nil, history.StatusCompleted},
		{"empty folder", Report{}, nil, history.StatusCompleted},
		{"partial", Report{Files: []FileResult{ok, failed}}, nil, history.StatusPartial},
		{"truncated", Report{Files: []FileResult{truncated}}, nil, history.StatusPartial},
		{"all failed", Report{Files: []FileResult{failed}}, nil, history.StatusFailed},
		{"cancelled", Report{}, fmt.Errorf("scan: %w", context.Canceled), history.StatusCancelled},
		{"aborted", Report{}, services.ErrConfiguration, history.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.report, tt.err); got != tt.want {
				t.Fatalf("statusFor = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReplayGroupsEventsBySource(t *testing.T) {
	hit := func(source string, offset int64) match.WindowEvent {
		return testsupport.Hit(source, offset, testsupport.Track("a", "Hello", 80))
	}
	dump := export.EventDump{
		WindowMs: testsupport.WindowMs,
		Events: map[match.Kind][]match.WindowEvent{
			match.KindMusic: {
				hit("one.mp3", 0), hit("one.mp3", 10000),
				hit("two.mp3", 0), testsupport.Miss("two.mp3", 10000),
			},
		},
	}
	opts := durationOptions()
	opts.Kinds = []match.Kind{match.KindMusic}
	s := New(&testsupport.Recognizer{}, opts)

	report := s.Replay(context.Background(), "dump", dump)
	if len(report.Files) != 2 || report.Files[0].Source != "one.mp3" || report.Files[1].Source != "two.mp3" {
		t.Fatalf("files = %+v", report.Files)
	}
	merged := report.Segments(match.KindMusic, export.StageMerged)
	if len(merged) != 3 {
		t.Fatalf("merged = %+v, want three segments", merged)
	}
	if merged[0].Source != "one.mp3" || merged[0].Time.End != 20000 {
		t.Fatalf("first segment = %+v", merged[0])
	}
}

func TestReplayReportsInvariantViolations(t *testing.T) {
	dump := export.EventDump{
		WindowMs: testsupport.WindowMs,
		Events: map[match.Kind][]match.WindowEvent{
			match.KindMusic: {testsupport.Miss("a.mp3", 10000), testsupport.Miss("a.mp3", 0)},
		},
	}
	opts := durationOptions()
	opts.Kinds = []match.Kind{match.KindMusic}
	report := New(&testsupport.Recognizer{}, opts).Replay(context.Background(), "dump", dump)
	if len(report.Files) != 1 || !errors.Is(report.Files[0].Err, services.ErrInvariant) {
		t.Fatalf("files = %+v, want invariant failure", report.Files)
	}
}
