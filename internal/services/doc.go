// Package services defines shared utilities consumed by the export engine and
// its remote API integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, batch numbers, and record IDs for
//     logging and the failure ledger.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the export taxonomy (not found, transient, client fault, no
//     response, malformed payload, media unavailable).
//
// The helpdesk subpackage holds the HTTP client for the remote records API.
// Use these markers when adding new failure paths so the coordinator can keep
// deciding between "record and continue" and "stop the run" with errors.Is.
package services
