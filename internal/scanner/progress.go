package scanner

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress renders per-file probing progress.
type Progress interface {
	Track(name string, windows int64) Tracker
	Wait()
}

// Tracker follows one file. Every tracker ends with exactly one Done or Abort.
type Tracker interface {
	Increment()
	Done()
	Abort()
}

// Bars renders one progress bar per file.
type Bars struct {
	p *mpb.Progress
}

// NewBars renders bars to w.
func NewBars(w io.Writer) *Bars {
	return &Bars{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(48))}
}

// Track adds a bar for a file with the given number of windows.
func (b *Bars) Track(name string, windows int64) Tracker {
	bar := b.p.AddBar(windows,
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return barTracker{bar: bar}
}

// Wait blocks until every bar has finished rendering.
func (b *Bars) Wait() {
	b.p.Wait()
}

type barTracker struct {
	bar *mpb.Bar
}

func (t barTracker) Increment() { t.bar.Increment() }

// Done completes the bar at its current count; a truncated file ends early.
func (t barTracker) Done() { t.bar.SetTotal(-1, true) }

func (t barTracker) Abort() { t.bar.Abort(false) }

type nopProgress struct{}

func (nopProgress) Track(string, int64) Tracker { return nopTracker{} }
func (nopProgress) Wait()                       {}

type nopTracker struct{}

func (nopTracker) Increment() {}
func (nopTracker) Done()      {}
func (nopTracker) Abort()     {}
