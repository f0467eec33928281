package testsupport

import "acrscan/internal/match"

// WindowMs is the window length used by the event fixtures.
const WindowMs int64 = 10_000

// Hit builds an OK window event at offsetMs whose primary candidate is c.
func Hit(source string, offsetMs int64, c match.Candidate, alternates ...match.Candidate) match.WindowEvent {
	primary := c
	return match.WindowEvent{
		Source:     source,
		OffsetMs:   offsetMs,
		LengthMs:   WindowMs,
		Status:     match.StatusOK,
		Code:       0,
		Message:    "Success",
		Primary:    &primary,
		Alternates: alternates,
	}
}

// Miss builds a no-result window event at offsetMs.
func Miss(source string, offsetMs int64) match.WindowEvent {
	return match.WindowEvent{
		Source:   source,
		OffsetMs: offsetMs,
		LengthMs: WindowMs,
		Status:   match.StatusNoResult,
		Code:     1001,
		Message:  "No result",
	}
}

// Track builds a bare candidate.
func Track(id, title string, score int) match.Candidate {
	return match.Candidate{CanonicalID: id, Title: title, Score: score}
}

// WithDB sets the reference recording offset of c.
func WithDB(c match.Candidate, begin, end int64) match.Candidate {
	c.DBOffset = &match.Range{Begin: begin, End: end}
	return c
}

// WithSample sets the in-window sample offset of c.
func WithSample(c match.Candidate, begin, end int64) match.Candidate {
	c.SampleOffset = &match.Range{Begin: begin, End: end}
	return c
}
