// Package record models BOLD specimen rows and the tab-separated exchange format
// every stage reads and writes.
//
// A Record is a record id plus a sparse set of non-null column values. Null
// handling mirrors the upstream data dumps: empty cells and the usual NA tokens
// are absent. The literal "None" is kept as a value, so taxonomy can tell an
// unset rank from a missing column, and Present reads it as null for
// everything that only asks whether a field is filled. Values are
// NFC-normalized on the way in.
//
// The Reader normalizes the record-id column name at ingestion, skips and
// collects malformed rows instead of failing the whole file, and can assign
// sequential ids to dumps that carry none.
package record
