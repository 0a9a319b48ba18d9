// Package mediafetch downloads call recordings and attachments referenced by
// a record and writes them to the content store.
//
// Header parsing is kept in pure functions (ParseContentType and
// ParseContentDispositionFilename) that report an explicit ok flag instead of
// guessing. The fetcher never follows redirects: a 3xx response or a Location
// header is reported as ErrUnexpectedRedirect.
package mediafetch
