// Package services defines shared utilities consumed by the scanner, the
// recognizer, and the reconciliation engine.
//
// Key responsibilities:
//   - Context helpers that stamp scan IDs, source files, and result kinds for
//     logging.
//   - Structured error markers plus the Wrap helper. Callers classify failures
//     with errors.Is: ErrTransient is retried, ErrDecode stops probing a file,
//     ErrMalformed degrades a single record, ErrInvariant skips a file.
//
// Use these helpers when wiring new components so failure handling stays
// uniform across the tool.
package services
