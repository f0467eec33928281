// Package main hosts the acrscan CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, builds the logger, and
// hands work to the internal packages: scanner for scans and offline
// reconciliation, history for past runs, preflight for environment checks.
// Commands own only flag parsing and rendering.
package main
