package export

import (
	"fmt"
	"strconv"
	"strings"

	"acrscan/internal/match"
)

// Separator joins multi-valued fields such as artists and similar results.
const Separator = "|##|"

// Record is one report row. Pointer offsets are empty cells when absent.
type Record struct {
	Filename       string `json:"filename"`
	StatusCode     int    `json:"status_code"`
	Status         string `json:"status"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	StartMs        int64  `json:"start_ms"`
	EndMs          int64  `json:"end_ms"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
	PlayedMs       int64  `json:"played_duration_ms"`
	Title          string `json:"title,omitempty"`
	Score          int    `json:"score"`
	SimilarResults string `json:"similar_results,omitempty"`
	ACRID          string `json:"acrid,omitempty"`
	SampleBeginMs  *int64 `json:"sample_begin_time_offset_ms,omitempty"`
	SampleEndMs    *int64 `json:"sample_end_time_offset_ms,omitempty"`
	DBBeginMs      *int64 `json:"db_begin_time_offset_ms,omitempty"`
	DBEndMs        *int64 `json:"db_end_time_offset_ms,omitempty"`

	Music  *MusicFields  `json:"music,omitempty"`
	Custom *CustomFields `json:"custom_file,omitempty"`
}

// MusicFields are the columns only music rows carry.
type MusicFields struct {
	Artists     string `json:"artists_names,omitempty"`
	Album       string `json:"album,omitempty"`
	ISRC        string `json:"isrc,omitempty"`
	UPC         string `json:"upc,omitempty"`
	SpotifyID   string `json:"spotify_id,omitempty"`
	YouTubeID   string `json:"youtube_id,omitempty"`
	DeezerID    string `json:"deezer_id,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	Label       string `json:"label,omitempty"`
	Language    string `json:"language,omitempty"`
}

// CustomFields are the columns only custom-file rows carry.
type CustomFields struct {
	AudioID  string `json:"audio_id,omitempty"`
	BucketID string `json:"bucket_id,omitempty"`
}

// MusicRecord projects a segment onto a music report row.
func MusicRecord(seg match.Segment) Record {
	rec := baseRecord(seg)
	fields := MusicFields{}
	if c := seg.Canonical; c != nil {
		fields = MusicFields{
			Artists:     strings.Join(c.Artists, Separator),
			Album:       c.Album,
			ISRC:        c.ISRC,
			UPC:         c.UPC,
			SpotifyID:   c.SpotifyID,
			YouTubeID:   c.YouTubeID,
			DeezerID:    c.DeezerID,
			ReleaseDate: c.ReleaseDate,
			Label:       c.Label,
			Language:    c.Language,
		}
	}
	rec.Music = &fields
	return rec
}

// CustomFileRecord projects a segment onto a custom-file report row.
func CustomFileRecord(seg match.Segment) Record {
	rec := baseRecord(seg)
	fields := CustomFields{}
	if c := seg.Canonical; c != nil {
		fields = CustomFields{AudioID: c.AudioID, BucketID: c.BucketID}
	}
	rec.Custom = &fields
	return rec
}

// RecordFor picks the projection for kind.
func RecordFor(kind match.Kind, seg match.Segment) Record {
	if kind == match.KindCustom {
		return CustomFileRecord(seg)
	}
	return MusicRecord(seg)
}

// Records projects every segment.
func Records(kind match.Kind, segments []match.Segment) []Record {
	out := make([]Record, 0, len(segments))
	for _, seg := range segments {
		out = append(out, RecordFor(kind, seg))
	}
	return out
}

func baseRecord(seg match.Segment) Record {
	rec := Record{
		Filename:   seg.Source,
		StatusCode: seg.Code,
		Status:     seg.Status.String(),
		StartTime:  Clock(seg.Time.Begin),
		EndTime:    Clock(seg.Time.End),
		StartMs:    seg.Time.Begin,
		EndMs:      seg.Time.End,
		PlayedMs:   seg.PlayedMs,
		Score:      seg.Score,
	}
	if c := seg.Canonical; c != nil {
		rec.Title = c.Title
		rec.ACRID = c.CanonicalID
		rec.DurationMs = c.DurationMs
		if c.SampleOffset != nil {
			rec.SampleBeginMs, rec.SampleEndMs = ptr(c.SampleOffset.Begin), ptr(c.SampleOffset.End)
		}
	}
	if seg.DBTime != nil {
		rec.DBBeginMs, rec.DBEndMs = ptr(seg.DBTime.Begin), ptr(seg.DBTime.End)
	}
	rec.SimilarResults = SimilarResults(seg.Alternates)
	return rec
}

// SimilarResults renders alternates as "title [score|id]" joined by Separator.
func SimilarResults(alternates []match.Candidate) string {
	if len(alternates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(alternates))
	for _, alt := range alternates {
		parts = append(parts, fmt.Sprintf("%s [%d|%s]", alt.Title, alt.Score, alt.CanonicalID))
	}
	return strings.Join(parts, Separator)
}

// Clock renders milliseconds as HH:MM:SS, truncating sub-second parts. Hours
// do not wrap at 24.
func Clock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

func ptr(v int64) *int64 {
	return &v
}

var baseColumns = []string{
	"filename", "status_code", "status", "start_time", "end_time", "duration_ms",
	"played_duration_ms", "title", "score", "similar_results", "acrid",
	"sample_begin_time_offset_ms", "sample_end_time_offset_ms",
	"db_begin_time_offset_ms", "db_end_time_offset_ms",
}

var musicColumns = []string{
	"artists_names", "album", "isrc", "upc", "spotify_id", "youtube_id", "deezer_id",
	"release_date", "label", "language",
}

var customColumns = []string{"audio_id", "bucket_id"}

// Columns returns the CSV header for kind.
func Columns(kind match.Kind) []string {
	extra := musicColumns
	if kind == match.KindCustom {
		extra = customColumns
	}
	return append(append([]string(nil), baseColumns...), extra...)
}

// Row renders the record in Columns order for kind.
func (r Record) Row(kind match.Kind) []string {
	row := []string{
		r.Filename,
		strconv.Itoa(r.StatusCode),
		r.Status,
		r.StartTime,
		r.EndTime,
		optional(r.DurationMs != 0, r.DurationMs),
		strconv.FormatInt(r.PlayedMs, 10),
		r.Title,
		strconv.Itoa(r.Score),
		r.SimilarResults,
		r.ACRID,
		cell(r.SampleBeginMs),
		cell(r.SampleEndMs),
		cell(r.DBBeginMs),
		cell(r.DBEndMs),
	}
	if kind == match.KindCustom {
		c := CustomFields{}
		if r.Custom != nil {
			c = *r.Custom
		}
		return append(row, c.AudioID, c.BucketID)
	}
	m := MusicFields{}
	if r.Music != nil {
		m = *r.Music
	}
	return append(row, m.Artists, m.Album, m.ISRC, m.UPC, m.SpotifyID, m.YouTubeID, m.DeezerID, m.ReleaseDate, m.Label, m.Language)
}

func cell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optional(ok bool, v int64) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
