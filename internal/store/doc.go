// Package store persists specimen records, taxa, criterion results, and
// ranking tiers in SQLite.
//
// The schema is embedded and its version kept in PRAGMA user_version; opening
// a database created by a different schema version fails with
// ErrSchemaMismatch. Records keep their
// full column set as JSON next to the few columns the pipeline queries, so a
// stored dump can be exported again without loss. Taxa carry a unique index
// over (kingdom, name, level, parent) which makes CreateTaxon safe across
// processes. Writers that must not interleave, such as the taxonomy linker,
// take the advisory lock returned by LockWriter.
package store
