// Package scanner drives a Recognizer across the windows of media files and
// reconciles the resulting events into report segments.
//
// Windows of one file are probed sequentially in increasing offset order.
// Files of a folder are scanned in parallel up to Options.Workers. Each file
// keeps its own events, segments and candidate stats; a file that fails is
// reported and skipped without cancelling the others.
//
// Run wraps a scan with the report lock, the CSV/JSON exports and the history
// record.
package scanner
