// Package main hosts the auditexport CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, the content store, the
// failure ledger, and the quota scheduler into an export run, and exposes
// read-only views over what previous runs left behind: saved record counts,
// the known-missing list, outstanding failures, and run history.
//
// Keep this package thin. Behaviour belongs in the internal packages; commands
// here only assemble them and render their results.
package main
