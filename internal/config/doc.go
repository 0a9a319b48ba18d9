// Package config loads, normalizes, and validates exporter configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the API
// credentials (AUDITEXPORT_USERNAME, AUDITEXPORT_PASSWORD). The Config type
// centralizes every knob the CLI and export engine need so the output store,
// state directory, quota, and retry policy are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
