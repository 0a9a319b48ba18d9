// Package helpdesk is the HTTP transport for the remote helpdesk API.
//
// Client issues authenticated GETs for a record's audit trail and for media
// downloads. It never interprets payloads: callers receive the status code,
// headers, and body and decide how to classify the outcome. Media requests do
// not follow redirects so callers can flag them.
package helpdesk
