package media

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"acrscan/internal/services"
)

// ProbeResult is the subset of ffprobe JSON output acrscan reads.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect runs ffprobe against path and decodes its JSON report.
func (t *Tools) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, services.Wrap(services.ErrValidation, "media", "ffprobe", "empty path", nil)
	}
	output, err := t.run(ctx, t.ffprobe, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrDecode, "media", "ffprobe", "inspect "+path, err)
	}
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, services.Wrap(services.ErrDecode, "media", "ffprobe", "parse report", err)
	}
	return result, nil
}

// DurationMs returns the container duration of path in milliseconds.
// Files without any audio stream are rejected as undecodable.
func (t *Tools) DurationMs(ctx context.Context, path string) (int64, error) {
	result, err := t.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	if result.AudioStreamCount() == 0 {
		return 0, services.Wrap(services.ErrDecode, "media", "ffprobe", "no audio stream in "+path, nil)
	}
	return result.DurationMs(), nil
}

// AudioStreamCount returns the number of audio streams discovered.
func (r ProbeResult) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationMs returns the container duration, falling back to the longest
// audio stream. Unknown durations report 0.
func (r ProbeResult) DurationMs() int64 {
	seconds := parseFloat(r.Format.Duration)
	if seconds <= 0 || math.IsNaN(seconds) {
		for _, stream := range r.Streams {
			if !strings.EqualFold(stream.CodecType, "audio") {
				continue
			}
			if d := parseFloat(stream.Duration); d > seconds {
				seconds = d
			}
		}
	}
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
