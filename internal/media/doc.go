// Package media wraps the ffprobe and ffmpeg invocations acrscan needs:
// reading a file's duration and cutting one probe window out of it as a
// mono 8 kHz WAV buffer.
//
// Decoding is left entirely to ffmpeg. A window ffmpeg cannot decode is
// reported with services.ErrDecode so the scanner stops probing that file.
package media
