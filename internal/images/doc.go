// Package images decides HAS_IMAGE for large record sets against the BOLD
// image index.
//
// Records are grouped into batches of process ids, one bulk lookup per batch.
// Batches run in waves bounded by an admission budget; a wave is drained
// completely, failures included, before the next one is admitted, so memory
// stays bounded by one wave. Each batch retries transient failures in an
// explicit loop with a fixed delay. A batch that still fails reports every one
// of its records as Unknown rather than as a missing image.
package images
