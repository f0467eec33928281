package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"acrscan/internal/match"
)

func sampleSegment() match.Segment {
	return match.Segment{
		Source:   "mix.mp3",
		Status:   match.StatusOK,
		Time:     match.Range{Begin: 3725000, End: 3745500},
		PlayedMs: 20500,
		Score:    100,
		Canonical: &match.Candidate{
			CanonicalID:  "a1",
			Title:        "Hello",
			Score:        90,
			Artists:      []string{"Adele", "Guest"},
			ISRC:         "GB123",
			AudioID:      "77",
			SampleOffset: &match.Range{Begin: 1000, End: 9000},
		},
		Alternates: []match.Candidate{
			{CanonicalID: "b2", Title: "Hello (Remix)", Score: 80},
			{CanonicalID: "c3", Title: "Hullo", Score: 60},
		},
		DBTime: &match.Range{Begin: 5000, End: 25500},
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{999, "00:00:00"},
		{1207000, "00:20:07"},
		{3725000, "01:02:05"},
		{90000000, "25:00:00"},
		{-5, "00:00:00"},
	}
	for _, tt := range tests {
		if got := Clock(tt.ms); got != tt.want {
			t.Errorf("Clock(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestMusicRecord(t *testing.T) {
	rec := MusicRecord(sampleSegment())
	if rec.StartTime != "01:02:05" || rec.EndTime != "01:02:25" {
		t.Fatalf("times = %s..%s", rec.StartTime, rec.EndTime)
	}
	if rec.SimilarResults != "Hello (Remix) [80|b2]|##|Hullo [60|c3]" {
		t.Fatalf("similar = %q", rec.SimilarResults)
	}
	if rec.Music == nil || rec.Music.Artists != "Adele|##|Guest" || rec.Custom != nil {
		t.Fatalf("music fields = %+v custom = %+v", rec.Music, rec.Custom)
	}
	if rec.DBBeginMs == nil || *rec.DBBeginMs != 5000 || *rec.SampleEndMs != 9000 {
		t.Fatalf("offsets = %v %v", rec.DBBeginMs, rec.SampleEndMs)
	}
	if row := rec.Row(match.KindMusic); len(row) != len(Columns(match.KindMusic)) {
		t.Fatalf("row has %d cells, header %d", len(row), len(Columns(match.KindMusic)))
	}
}

func TestCustomFileRecord(t *testing.T) {
	rec := CustomFileRecord(sampleSegment())
	if rec.Custom == nil || rec.Custom.AudioID != "77" || rec.Music != nil {
		t.Fatalf("custom fields = %+v music = %+v", rec.Custom, rec.Music)
	}
	if row := rec.Row(match.KindCustom); len(row) != len(Columns(match.KindCustom)) {
		t.Fatalf("row has %d cells, header %d", len(row), len(Columns(match.KindCustom)))
	}
}

func TestNoResultRecordLeavesCellsEmpty(t *testing.T) {
	seg := match.Segment{Source: "mix.mp3", Status: match.StatusNoResult, Code: 1001, Time: match.Range{Begin: 0, End: 10000}, PlayedMs: 10000}
	row := MusicRecord(seg).Row(match.KindMusic)
	if row[1] != "1001" || row[2] != "no_result" || row[7] != "" || row[11] != "" {
		t.Fatalf("row = %q", row)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_music.csv")
	records := Records(match.KindMusic, []match.Segment{sampleSegment()})
	if err := WriteCSV(path, match.KindMusic, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "filename" || rows[1][7] != "Hello" {
		t.Fatalf("rows = %q", rows)
	}
}

func TestWriteCSVSkipsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(path, match.KindMusic, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file, stat err = %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Write(path, FormatJSON, match.KindCustom, Records(match.KindCustom, []match.Segment{sampleSegment()})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["acrid"] != "a1" {
		t.Fatalf("decoded = %v", decoded)
	}
	if _, ok := decoded[0]["custom_file"]; !ok {
		t.Fatalf("custom fields missing: %v", decoded[0])
	}
}

func TestReportNames(t *testing.T) {
	if got := Prefix("/music/a.mp3", "", false); got != "/music/a.mp3" {
		t.Fatalf("Prefix = %q", got)
	}
	if got := Prefix("/music/a.mp3", "reports/run", false); got != "reports/run.mp3" {
		t.Fatalf("Prefix = %q", got)
	}
	if got := Prefix("/music", "reports/run", true); got != "reports/run" {
		t.Fatalf("Prefix = %q", got)
	}
	tests := []struct {
		stage Stage
		kind  match.Kind
		want  string
	}{
		{StageRaw, match.KindMusic, "p_music.csv"},
		{StageRaw, match.KindCustom, "p_custom_file.csv"},
		{StageMerged, match.KindMusic, "p_merged_music.csv"},
		{StageFiltered, match.KindCustom, "p_filtered_custom_file.csv"},
	}
	for _, tt := range tests {
		if got := ReportPath("p", tt.stage, tt.kind, FormatCSV); got != tt.want {
			t.Errorf("ReportPath(%s, %s) = %q, want %q", tt.stage, tt.kind, got, tt.want)
		}
	}
	if got := ReportPath("p", StageMerged, match.KindMusic, FormatJSON); !strings.HasSuffix(got, "_merged_music.json") {
		t.Fatalf("json report = %q", got)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	path := EventsPath(filepath.Join(t.TempDir(), "p"))
	dump := EventDump{
		WindowMs: 10000,
		Events: map[match.Kind][]match.WindowEvent{
			match.KindMusic: {{Source: "mix.mp3", LengthMs: 10000, Status: match.StatusNoResult, Code: 1001}},
		},
	}
	if err := WriteEvents(path, dump); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	got, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	events := got.Events[match.KindMusic]
	if got.WindowMs != 10000 || len(events) != 1 || events[0].Status != match.StatusNoResult {
		t.Fatalf("dump = %+v", got)
	}
}

func TestReadEventsRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"window_ms":10000,"events":{"video":[]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadEvents(path); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
