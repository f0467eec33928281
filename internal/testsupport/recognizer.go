package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"

	"acrscan/internal/match"
	"acrscan/internal/recognizer"
)

// ProbeFunc scripts the reply of a fake recognizer for one window.
type ProbeFunc func(source string, startMs, lengthMs int64) (recognizer.Probe, error)

// Recognizer is an in-memory recognizer.Recognizer for scanner tests.
type Recognizer struct {
	Durations   map[string]int64
	DurationErr map[string]error
	Script      ProbeFunc

	mu    sync.Mutex
	calls map[string][]int64
}

// TotalDurationMs returns the scripted duration of source.
func (r *Recognizer) TotalDurationMs(ctx context.Context, source string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err, ok := r.DurationErr[source]; ok {
		return 0, err
	}
	duration, ok := r.Durations[source]
	if !ok {
		return 0, errors.New("unknown source " + source)
	}
	return duration, nil
}

// Probe records the call and returns the scripted reply. Without a script
// every window is a no-result for both kinds.
func (r *Recognizer) Probe(ctx context.Context, source string, startMs, lengthMs int64) (recognizer.Probe, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Probe{}, err
	}
	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string][]int64)
	}
	r.calls[source] = append(r.calls[source], startMs)
	r.mu.Unlock()

	if r.Script == nil {
		miss := Miss(source, startMs)
		miss.LengthMs = lengthMs
		return ProbeOf(miss, miss), nil
	}
	return r.Script(source, startMs, lengthMs)
}

// Calls returns the window offsets probed for source in call order.
func (r *Recognizer) Calls(source string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls[source]...)
}

// Sources returns every probed source, sorted.
func (r *Recognizer) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for source := range r.calls {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// ProbeOf builds a probe carrying the music and custom-file events.
func ProbeOf(music, custom match.WindowEvent) recognizer.Probe {
	return recognizer.Probe{Events: map[match.Kind]match.WindowEvent{
		match.KindMusic:  music,
		match.KindCustom: custom,
	}}
}
