// Package reconcile turns the ordered per-window recognition events of a
// source file into continuous "what was playing when" segments.
//
// Reconciliation runs in three passes over an in-memory slice:
//
//   - Merge folds consecutive windows whose titles are equivalent into one
//     segment, absorbing no-result windows into the running segment and
//     trimming boundaries with the sample offsets reported by the backend.
//   - BuildStats counts how often each canonical candidate was seen and sums
//     its scores. The result is a value; it is never updated after it is built.
//   - ResolveGaps collapses a no-result segment sandwiched between two
//     equivalent, continuous neighbors into the neighbor that wins the
//     tie-break.
//
// Run chains the passes and verifies the output invariants. Nothing in this
// package blocks or spawns goroutines; callers fan out across files.
package reconcile
