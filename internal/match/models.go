package match

import (
	"errors"
	"fmt"
	"strings"
)

// Status classifies the outcome of a recognition attempt.
type Status int

const (
	StatusOK Status = iota
	StatusNoResult
	StatusDecodeError
	StatusOther
)

// String returns the lowercase label used in logs and exports.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoResult:
		return "no_result"
	case StatusDecodeError:
		return "decode_error"
	default:
		return "other"
	}
}

// MarshalText encodes the status as its label.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status label.
func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "ok":
		*s = StatusOK
	case "no_result":
		*s = StatusNoResult
	case "decode_error":
		*s = StatusDecodeError
	case "other":
		*s = StatusOther
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// Kind identifies which result list of a recognition response a record came from.
type Kind string

const (
	KindMusic  Kind = "music"
	KindCustom Kind = "custom_file"
)

// Kinds lists every record kind in export order.
func Kinds() []Kind {
	return []Kind{KindMusic, KindCustom}
}

// ParseKind maps a user supplied label onto a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "music":
		return KindMusic, nil
	case "custom", "custom_file", "custom_files":
		return KindCustom, nil
	default:
		return "", fmt.Errorf("unknown result kind %q", value)
	}
}

// Range is a closed millisecond interval.
type Range struct {
	Begin int64 `json:"begin_ms"`
	End   int64 `json:"end_ms"`
}

// Span returns End - Begin.
func (r Range) Span() int64 {
	return r.End - r.Begin
}

// Valid reports whether the range is not inverted.
func (r Range) Valid() bool {
	return r.End >= r.Begin
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Candidate is one ranked hit returned by the recognizer for a window.
type Candidate struct {
	CanonicalID  string `json:"canonical_id"`
	Title        string `json:"title"`
	Score        int    `json:"score"`
	SampleOffset *Range `json:"sample_offset,omitempty"`
	DBOffset     *Range `json:"db_offset,omitempty"`

	Artists     []string `json:"artists,omitempty"`
	Album       string   `json:"album,omitempty"`
	Label       string   `json:"label,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	UPC         string   `json:"upc,omitempty"`
	SpotifyID   string   `json:"spotify_id,omitempty"`
	YouTubeID   string   `json:"youtube_id,omitempty"`
	DeezerID    string   `json:"deezer_id,omitempty"`
	Language    string   `json:"language,omitempty"`
	DurationMs  int64    `json:"duration_ms,omitempty"`

	AudioID  string `json:"audio_id,omitempty"`
	BucketID string `json:"bucket_id,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	c.SampleOffset = cloneRange(c.SampleOffset)
	c.DBOffset = cloneRange(c.DBOffset)
	if c.Artists != nil {
		c.Artists = append([]string(nil), c.Artists...)
	}
	return c
}

// PopulatedFields counts the non-empty fields of the candidate. Richer records
// win ties when two candidates compete for the same span.
func (c Candidate) PopulatedFields() int {
	count := 0
	for _, value := range []string{
		c.CanonicalID, c.Title, c.Album, c.Label, c.ReleaseDate, c.ISRC, c.UPC,
		c.SpotifyID, c.YouTubeID, c.DeezerID, c.Language, c.AudioID, c.BucketID,
	} {
		if strings.TrimSpace(value) != "" {
			count++
		}
	}
	if c.Score != 0 {
		count++
	}
	if c.SampleOffset != nil {
		count++
	}
	if c.DBOffset != nil {
		count++
	}
	if len(c.Artists) > 0 {
		count++
	}
	if c.DurationMs != 0 {
		count++
	}
	return count
}

// WindowEvent is the recognition outcome of one probed window.
type WindowEvent struct {
	Source     string      `json:"source"`
	OffsetMs   int64       `json:"offset_ms"`
	LengthMs   int64       `json:"length_ms"`
	Status     Status      `json:"status"`
	Code       int         `json:"code"`
	Message    string      `json:"message,omitempty"`
	Primary    *Candidate  `json:"primary,omitempty"`
	Alternates []Candidate `json:"alternates,omitempty"`
}

// ErrAlternatesWithoutPrimary reports a window carrying alternates but no primary.
var ErrAlternatesWithoutPrimary = errors.New("alternates present without primary candidate")

// Validate checks the structural invariants of a window event.
func (e WindowEvent) Validate() error {
	if e.LengthMs <= 0 {
		return fmt.Errorf("window at %dms: non-positive length %d", e.OffsetMs, e.LengthMs)
	}
	if e.OffsetMs < 0 {
		return fmt.Errorf("window at %dms: negative offset", e.OffsetMs)
	}
	if e.Primary == nil && len(e.Alternates) > 0 {
		return fmt.Errorf("window at %dms: %w", e.OffsetMs, ErrAlternatesWithoutPrimary)
	}
	if e.Status != StatusOK && e.Primary != nil {
		return fmt.Errorf("window at %dms: %s window carries a candidate", e.OffsetMs, e.Status)
	}
	return nil
}

// Segment is a reconciled span of a source file attributed to one canonical
// candidate, or to a non-OK status.
type Segment struct {
	Source     string      `json:"source"`
	Status     Status      `json:"status"`
	Code       int         `json:"code"`
	Time       Range       `json:"time"`
	PlayedMs   int64       `json:"played_ms"`
	Score      int         `json:"score"`
	Canonical  *Candidate  `json:"canonical,omitempty"`
	Alternates []Candidate `json:"alternates,omitempty"`
	DBTime     *Range      `json:"db_time,omitempty"`
}

// NewSegment builds the trivial one-window segment for an event. Alternates
// are deduplicated and never repeat the primary candidate.
func NewSegment(e WindowEvent) Segment {
	seg := Segment{
		Source:   e.Source,
		Status:   e.Status,
		Code:     e.Code,
		Time:     Range{Begin: e.OffsetMs, End: e.OffsetMs + e.LengthMs},
		PlayedMs: e.LengthMs,
	}
	if e.Primary != nil {
		primary := e.Primary.Clone()
		seg.Canonical = &primary
		seg.Score = primary.Score
		seg.DBTime = cloneRange(primary.DBOffset)
		seg.Alternates = UnionAlternates(primary.CanonicalID, nil, e.Alternates)
	}
	return seg
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	if s.Canonical != nil {
		canonical := s.Canonical.Clone()
		s.Canonical = &canonical
	}
	s.DBTime = cloneRange(s.DBTime)
	if s.Alternates != nil {
		alternates := make([]Candidate, len(s.Alternates))
		for i, alt := range s.Alternates {
			alternates[i] = alt.Clone()
		}
		s.Alternates = alternates
	}
	return s
}

// TitleRef returns the canonical title, or nil when the segment has no canonical candidate.
func (s Segment) TitleRef() *string {
	if s.Canonical == nil {
		return nil
	}
	title := s.Canonical.Title
	return &title
}

// CanonicalID returns the canonical candidate identifier or "".
func (s Segment) CanonicalID() string {
	if s.Canonical == nil {
		return ""
	}
	return s.Canonical.CanonicalID
}

// Title returns the canonical title or "".
func (s Segment) Title() string {
	if s.Canonical == nil {
		return ""
	}
	return s.Canonical.Title
}

// RecomputePlayed sets PlayedMs from the time range.
func (s *Segment) RecomputePlayed() {
	s.PlayedMs = s.Time.Span()
}

// UnionAlternates merges two alternate lists keyed on CanonicalID, keeping the
// highest score on collision and dropping any entry matching excludeID. The
// inputs are not modified; order follows first appearance.
func UnionAlternates(excludeID string, a, b []Candidate) []Candidate {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, list := range [][]Candidate{a, b} {
		for _, cand := range list {
			if excludeID != "" && cand.CanonicalID == excludeID {
				continue
			}
			if pos, ok := index[cand.CanonicalID]; ok {
				if cand.Score > out[pos].Score {
					out[pos].Score = cand.Score
				}
				continue
			}
			index[cand.CanonicalID] = len(out)
			out = append(out, cand.Clone())
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
