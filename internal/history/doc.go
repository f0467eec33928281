// Package history persists scan runs and their reconciled segments in SQLite.
//
// Every scan gets a uuid. Segments are stored per result kind and pipeline
// stage (raw, merged, filtered) so the CLI can list past runs and show what
// was found without rescanning. Writes retry on SQLITE_BUSY the same way for
// every statement, which keeps concurrent file workers safe.
package history
