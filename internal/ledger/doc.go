// Package ledger keeps export bookkeeping in SQLite: one row per export run
// and one row per outstanding failure.
//
// The record store and the 404 cache decide what gets fetched; the ledger only
// explains what went wrong. A failure row is removed once a later run saves
// the record or learns it is missing.
package ledger
