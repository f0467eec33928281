package match

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewSegmentDeduplicatesAlternates(t *testing.T) {
	event := WindowEvent{
		Source:   "mix.mp3",
		OffsetMs: 20000,
		LengthMs: 10000,
		Status:   StatusOK,
		Primary:  &Candidate{CanonicalID: "a", Title: "Hello", Score: 90, DBOffset: &Range{Begin: 1000, End: 9000}},
		Alternates: []Candidate{
			{CanonicalID: "b", Title: "Hello (Remix)", Score: 70},
			{CanonicalID: "a", Title: "Hello", Score: 99},
			{CanonicalID: "b", Title: "Hello (Remix)", Score: 80},
		},
	}

	seg := NewSegment(event)
	if seg.Time != (Range{Begin: 20000, End: 30000}) {
		t.Fatalf("time = %+v", seg.Time)
	}
	if seg.PlayedMs != 10000 {
		t.Fatalf("played = %d, want 10000", seg.PlayedMs)
	}
	if seg.Score != 90 {
		t.Fatalf("score = %d, want 90", seg.Score)
	}
	if len(seg.Alternates) != 1 {
		t.Fatalf("alternates = %+v, want one entry", seg.Alternates)
	}
	if seg.Alternates[0].CanonicalID != "b" || seg.Alternates[0].Score != 80 {
		t.Fatalf("alternate = %+v, want b with score 80", seg.Alternates[0])
	}
	if seg.DBTime == nil || seg.DBTime.End != 9000 {
		t.Fatalf("db time = %+v", seg.DBTime)
	}

	// The event stays untouched.
	seg.DBTime.End = 1
	if event.Primary.DBOffset.End != 9000 {
		t.Fatal("segment shares db offset with event")
	}
}

func TestUnionAlternatesKeepsMaxScore(t *testing.T) {
	a := []Candidate{{CanonicalID: "x", Score: 40}, {CanonicalID: "y", Score: 60}}
	b := []Candidate{{CanonicalID: "y", Score: 75}, {CanonicalID: "z", Score: 10}, {CanonicalID: "self", Score: 99}}

	got := UnionAlternates("self", a, b)
	want := map[string]int{"x": 40, "y": 75, "z": 10}
	if len(got) != len(want) {
		t.Fatalf("got %d alternates, want %d: %+v", len(got), len(want), got)
	}
	for _, cand := range got {
		if want[cand.CanonicalID] != cand.Score {
			t.Errorf("%s score = %d, want %d", cand.CanonicalID, cand.Score, want[cand.CanonicalID])
		}
	}
	if a[1].Score != 60 {
		t.Fatal("input slice was modified")
	}
}

func TestWindowEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   WindowEvent
		wantErr bool
	}{
		{"ok", WindowEvent{LengthMs: 10000, Status: StatusOK, Primary: &Candidate{CanonicalID: "a"}}, false},
		{"no result", WindowEvent{LengthMs: 10000, Status: StatusNoResult}, false},
		{"alternates without primary", WindowEvent{LengthMs: 10000, Status: StatusOK, Alternates: []Candidate{{CanonicalID: "a"}}}, true},
		{"zero length", WindowEvent{Status: StatusNoResult}, true},
		{"no result with candidate", WindowEvent{LengthMs: 10000, Status: StatusNoResult, Primary: &Candidate{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := WindowEvent{LengthMs: 1, Alternates: []Candidate{{}}}.Validate()
	if !errors.Is(err, ErrAlternatesWithoutPrimary) {
		t.Fatalf("expected ErrAlternatesWithoutPrimary, got %v", err)
	}
}

func TestPopulatedFields(t *testing.T) {
	bare := Candidate{CanonicalID: "a", Title: "Hello"}
	rich := Candidate{CanonicalID: "a", Title: "Hello", Label: "XL", ISRC: "GB123", Artists: []string{"Adele"}}
	if bare.PopulatedFields() != 2 {
		t.Fatalf("bare = %d, want 2", bare.PopulatedFields())
	}
	if rich.PopulatedFields() <= bare.PopulatedFields() {
		t.Fatalf("rich (%d) should outrank bare (%d)", rich.PopulatedFields(), bare.PopulatedFields())
	}
}

func TestStatusJSON(t *testing.T) {
	payload, err := json.Marshal(WindowEvent{Status: StatusNoResult, LengthMs: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded WindowEvent
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Status != StatusNoResult {
		t.Fatalf("status = %v, want no_result", decoded.Status)
	}
}
