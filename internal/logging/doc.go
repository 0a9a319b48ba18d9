// Package logging assembles structured slog loggers for the exporter.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so coordinator and worker code can tag
// log lines with run IDs, batch numbers, and record IDs without threading
// attributes by hand. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
