// Package metrics exposes export progress as Prometheus metrics.
//
// A Metrics value owns its own registry so tests and repeated runs in one
// process never collide on registration. It implements the observer hooks of
// the export coordinator and the media fetcher, and Serve publishes the
// registry on /metrics while an export runs.
package metrics
