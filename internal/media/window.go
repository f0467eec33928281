package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"acrscan/internal/services"
)

// SampleRate is the rate of extracted windows; fingerprinting needs no more.
const SampleRate = 8000

// CommandRunner executes name with args and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tools runs ffprobe and ffmpeg.
type Tools struct {
	ffmpeg  string
	ffprobe string
	runner  CommandRunner
}

// NewTools returns Tools using the given binaries; blank names fall back to
// "ffmpeg" and "ffprobe" on PATH.
func NewTools(ffmpegBinary, ffprobeBinary string) *Tools {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tools{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Tools) WithCommandRunner(runner CommandRunner) {
	t.runner = runner
}

// Window cuts [startMs, startMs+lengthMs) out of source and returns it as a
// mono 8 kHz 16-bit WAV. The final window of a file may be shorter than
// lengthMs. Cancellation is returned unchanged; any other ffmpeg failure is
// marked services.ErrDecode.
func (t *Tools) Window(ctx context.Context, source string, startMs, lengthMs int64) ([]byte, error) {
	if lengthMs <= 0 {
		return nil, services.Wrap(services.ErrValidation, "media", "extract window", fmt.Sprintf("invalid length %dms", lengthMs), nil)
	}
	if startMs < 0 {
		return nil, services.Wrap(services.ErrValidation, "media", "extract window", fmt.Sprintf("invalid start %dms", startMs), nil)
	}
	output, err := t.run(ctx, t.ffmpeg, windowArgs(source, startMs, lengthMs)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, services.ErrExternalTool) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrDecode, "media", "extract window", fmt.Sprintf("%s at %dms", source, startMs), err)
	}
	if len(output) <= wavHeaderSize {
		return nil, services.Wrap(services.ErrDecode, "media", "extract window", fmt.Sprintf("%s at %dms produced no audio", source, startMs), nil)
	}
	return output, nil
}

const wavHeaderSize = 44

func windowArgs(source string, startMs, lengthMs int64) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-ss", formatSeconds(startMs),
		"-t", formatSeconds(lengthMs),
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	}
}

func formatSeconds(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

func (t *Tools) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if t.runner != nil {
		return t.runner(ctx, name, args...)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, services.Wrap(services.ErrExternalTool, "media", "run "+name, "command failed to start", err)
	}
	return stdout.Bytes(), nil
}
