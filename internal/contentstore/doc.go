// Package contentstore persists exported records and their media in a
// gocloud.dev blob bucket.
//
// Production runs open a file:// bucket rooted at paths.output_dir so the
// on-disk layout is tickets/{id}.json, calls/{key}, and attachments/{key};
// tests use mem:// buckets. Every write replaces the previous object with the
// same key.
package contentstore
