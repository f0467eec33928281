// Package logging assembles structured slog loggers and formatting helpers used
// across acrscan.
//
// It owns the console and JSON handlers, mirrors records into a dated JSON log
// file, and exposes context-aware helpers so scanner code can tag log lines
// with scan IDs, source files and result kinds. WarnWithContext and
// ErrorWithContext enforce the event_type, error_hint and impact fields on
// problem reports. NewNop serves tests and wiring code that cannot fail.
package logging
