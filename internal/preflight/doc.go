// Package preflight provides readiness checks for the filesystem paths,
// credentials, external binaries and remote host acrscan depends on.
//
// The CLI "acrscan check" command runs RunAll and renders the results as a
// table. "acrscan scan" runs the same checks with the network probe skipped
// and refuses to start when any of them fails.
package preflight
