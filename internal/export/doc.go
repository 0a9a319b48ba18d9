// Package export runs the bulk export of a closed record id range.
//
// The Coordinator walks the range in batches. Each batch is sized by the
// quota scheduler, skips ids already saved or known to be missing, and is
// fetched by a bounded worker pool. Workers make exactly one call per job and
// report a typed outcome; a single loop in the coordinator consumes outcomes,
// charges the quota, updates the 404 cache, schedules retries, and decides
// when the batch must stop. Batches never overlap.
//
// Media downloads made while assembling a record do not count against the
// record quota.
package export
