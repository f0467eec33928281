package acrcloud

import (
	"errors"
	"fmt"
	"strings"

	"acrscan/internal/match"
	"acrscan/internal/services"
)

// ProjectMusic converts a music entry into a candidate. Offsets that cannot
// describe a range are left unset and reported as ErrMalformed; the
// candidate stays usable.
func ProjectMusic(m Music) (match.Candidate, error) {
	c := match.Candidate{
		CanonicalID: strings.TrimSpace(m.ACRID),
		Title:       strings.TrimSpace(m.Title),
		Score:       clampScore(m.Score),
		DurationMs:  int64(m.DurationMs),
		Label:       strings.TrimSpace(m.Label),
		ReleaseDate: strings.TrimSpace(m.ReleaseDate),
		Language:    strings.TrimSpace(m.Language),
		ISRC:        string(m.ExternalIDs.ISRC),
		UPC:         string(m.ExternalIDs.UPC),
	}
	if m.Album != nil {
		c.Album = strings.TrimSpace(m.Album.Name)
	}
	for _, artist := range m.Artists {
		if name := strings.TrimSpace(artist.Name); name != "" {
			c.Artists = append(c.Artists, name)
		}
	}
	if meta := m.ExternalMetadata; meta.Spotify != nil {
		c.SpotifyID = string(meta.Spotify.Track.ID)
	}
	if meta := m.ExternalMetadata; meta.YouTube != nil {
		c.YouTubeID = string(meta.YouTube.VID)
	}
	if meta := m.ExternalMetadata; meta.Deezer != nil {
		c.DeezerID = string(meta.Deezer.Track.ID)
	}
	err := projectOffsets(&c, m.Offsets)
	return c, err
}

// ProjectCustomFile converts a custom-file entry into a candidate.
func ProjectCustomFile(f CustomFile) (match.Candidate, error) {
	c := match.Candidate{
		CanonicalID: strings.TrimSpace(f.ACRID),
		Title:       strings.TrimSpace(f.Title),
		Score:       clampScore(f.Score),
		DurationMs:  int64(f.DurationMs),
		AudioID:     string(f.AudioID),
		BucketID:    string(f.BucketID),
	}
	err := projectOffsets(&c, f.Offsets)
	return c, err
}

func projectOffsets(c *match.Candidate, o Offsets) error {
	var problems []error
	if r, err := offsetRange("sample", o.SampleBeginMs, o.SampleEndMs); err != nil {
		problems = append(problems, err)
	} else {
		c.SampleOffset = r
	}
	if r, err := offsetRange("db", o.DBBeginMs, o.DBEndMs); err != nil {
		problems = append(problems, err)
	} else {
		c.DBOffset = r
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrMalformed, "acrcloud", "project", c.CanonicalID, errors.Join(problems...))
}

func offsetRange(name string, begin, end *Millis) (*match.Range, error) {
	if begin == nil && end == nil {
		return nil, nil
	}
	if begin == nil || end == nil {
		return nil, fmt.Errorf("%s offset has only one bound", name)
	}
	r := match.Range{Begin: int64(*begin), End: int64(*end)}
	if !r.Valid() || r.Begin < 0 {
		return nil, fmt.Errorf("%s offset [%d, %d] is not a range", name, r.Begin, r.End)
	}
	return &r, nil
}

func clampScore(s Score) int {
	return min(max(int(s), 0), 100)
}

// Event builds the window event for one result kind. An OK response whose
// list for kind is empty becomes a no-result event. Projection problems are
// returned alongside the event, which is always usable.
func (r Response) Event(kind match.Kind, source string, offsetMs, lengthMs int64) (match.WindowEvent, []error) {
	event := match.WindowEvent{
		Source:   source,
		OffsetMs: offsetMs,
		LengthMs: lengthMs,
		Status:   StatusFor(r.Status.Code),
		Code:     r.Status.Code,
		Message:  strings.TrimSpace(r.Status.Msg),
	}
	if event.Status != match.StatusOK {
		return event, nil
	}

	candidates, problems := r.candidates(kind)
	if len(candidates) == 0 {
		event.Status = match.StatusNoResult
		event.Code = CodeNoResult
		event.Message = "No result"
		return event, problems
	}
	primary := candidates[0]
	event.Primary = &primary
	if len(candidates) > 1 {
		event.Alternates = candidates[1:]
	}
	return event, problems
}

func (r Response) candidates(kind match.Kind) ([]match.Candidate, []error) {
	if r.Metadata == nil {
		return nil, nil
	}
	var out []match.Candidate
	var problems []error
	keep := func(c match.Candidate, err error) {
		if err != nil {
			problems = append(problems, err)
		}
		if c.CanonicalID == "" {
			problems = append(problems, services.Wrap(services.ErrMalformed, "acrcloud", "project", "entry without acrid dropped", nil))
			return
		}
		out = append(out, c)
	}
	switch kind {
	case match.KindMusic:
		for _, m := range r.Metadata.Music {
			keep(ProjectMusic(m))
		}
	case match.KindCustom:
		for _, f := range r.Metadata.CustomFiles {
			keep(ProjectCustomFile(f))
		}
	}
	return out, problems
}
