// Package taxonomy normalizes the per-record classification columns
// (kingdom through subspecies) into a deduplicated tree of taxon nodes.
//
// A Resolver walks a record's populated levels from kingdom down, reusing nodes
// from its in-memory trie when it can and falling back to the Store otherwise.
// The trie is owned by the Resolver; shard work by giving each shard its own
// Resolver over the same Store.
package taxonomy
