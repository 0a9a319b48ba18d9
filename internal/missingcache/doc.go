// Package missingcache persists record IDs the remote API answered with 404.
//
// The cache is a compact JSON array of integers in insertion order. It is
// loaded once at startup, consulted before every fetch, and rewritten in full
// (temp file plus rename) on every addition so a crash never leaves a torn
// file. Entries are never removed by the exporter; operators reset the file
// by hand when a previously missing record should be retried.
package missingcache
