// Package logs reads the exporter's log file for the CLI: the last N lines,
// then optionally every line appended afterwards.
package logs
