// Package document turns a raw audits payload into the record document that
// is written to the content store.
//
// The payload's subject array (records by default, tickets on Zendesk)
// supplies the record fields; audits pass through unchanged except that every
// call recording and attachment is downloaded and annotated in place with a
// downloaded_media summary; users are reduced to id, url, name, email, and
// phone.
package document
