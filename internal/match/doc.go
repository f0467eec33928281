// Package match defines the recognition data model shared by the scanner,
// the reconciliation engine, and the exporters.
//
// A WindowEvent is the immutable outcome of probing one fixed-length window of
// a source file. Segments are built from WindowEvents by the reconcile package
// and describe a continuous span of the file attributed to one canonical
// candidate (or to "no result"). Candidates carry the backend's metadata in
// explicit fields so exporters can project them without reflection.
//
// All times are integer milliseconds relative to the start of the source file,
// except DB offsets, which are relative to the matched reference recording.
package match
