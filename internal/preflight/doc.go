// Package preflight provides readiness checks for the filesystem paths and
// the API account that an export depends on.
//
// The export command runs the directory checks before taking the state lock
// and refuses to start when one fails. "auditexport check" runs every check,
// including one authenticated API call, and prints the results.
package preflight
