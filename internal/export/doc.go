// Package export renders reconciled segments as report rows and writes them
// as CSV or JSON.
//
// MusicRecord and CustomFileRecord are the two projections from a segment to
// a report row. Report names follow the <prefix>_<stage>_<kind>.csv scheme
// produced by ReportPath. All files are written atomically.
package export
