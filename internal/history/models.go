package history

import (
	"time"

	"acrscan/internal/match"
)

// Status is the lifecycle state of a scan run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusPartial marks a run where some files failed.
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Stage names the pipeline pass a stored segment came from.
type Stage string

const (
	StageRaw      Stage = "raw"
	StageMerged   Stage = "merged"
	StageFiltered Stage = "filtered"
)

// Scan is one stored scan run.
type Scan struct {
	ID           string
	Target       string
	Status       Status
	ErrorMessage string
	FileCount    int
	WindowMs     int64
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns the run time, or zero while running.
func (s Scan) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Segment is one stored reconciled span.
type Segment struct {
	ScanID      string
	Kind        match.Kind
	Stage       Stage
	Position    int
	Source      string
	Status      string
	StatusCode  int
	StartMs     int64
	EndMs       int64
	PlayedMs    int64
	Title       string
	CanonicalID string
	Score       int
	Alternates  []match.Candidate
}
