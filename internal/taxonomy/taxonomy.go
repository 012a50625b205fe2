package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"boldrank/internal/record"
)

// Levels lists the classification columns from the root down.
var Levels = []string{
	"kingdom",
	"phylum",
	"class",
	"order",
	"family",
	"subfamily",
	"genus",
	"species",
	"subspecies",
}

// Placeholder marks a level the data provider left unset.
const Placeholder = record.Placeholder

// Key identifies a taxon node. Parent is zero for nodes without a parent.
type Key struct {
	Kingdom string
	Name    string
	Level   int
	Parent  int64
}

// Store persists taxon nodes.
type Store interface {
	// FindTaxon returns the id of the node matching key exactly.
	FindTaxon(ctx context.Context, key Key) (int64, bool, error)
	// CreateTaxon inserts the node, or returns the id of an identical node
	// inserted concurrently.
	CreateTaxon(ctx context.Context, key Key) (int64, error)
}

type childKey struct {
	level int
	name  string
}

type node struct {
	id       int64
	children map[childKey]*node
}

func newNode(id int64) *node {
	return &node{id: id, children: make(map[childKey]*node)}
}

// Resolver assigns taxon ids to records.
type Resolver struct {
	store Store

	mu       sync.Mutex
	kingdoms map[string]*node
	nodes    int
}

// NewResolver returns a Resolver with an empty cache.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, kingdoms: make(map[string]*node)}
}

// LowestLevel returns the index of the deepest populated level, or -1.
func LowestLevel(rec record.Record) int {
	for i := len(Levels) - 1; i >= 0; i-- {
		if populated(rec, Levels[i]) {
			return i
		}
	}
	return -1
}

func populated(rec record.Record, level string) bool {
	_, ok := rec.Present(level)
	return ok
}

// Resolve returns the taxon id of the record's lowest populated level,
// creating missing ancestors. ok is false when no level is populated.
func (r *Resolver) Resolve(ctx context.Context, rec record.Record) (int64, bool, error) {
	if r == nil || r.store == nil {
		return 0, false, errors.New("taxonomy: resolver has no store")
	}
	lowest := LowestLevel(rec)
	if lowest < 0 {
		return 0, false, nil
	}

	kingdom := rec.String(Levels[0])
	if kingdom == Placeholder {
		kingdom = ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, ok := r.kingdoms[kingdom]
	if !ok {
		cursor = newNode(0)
		r.kingdoms[kingdom] = cursor
	}

	var parent int64
	for level := 0; level <= lowest; level++ {
		if !populated(rec, Levels[level]) {
			continue
		}
		name := rec.String(Levels[level])
		ck := childKey{level: level, name: name}

		child, cached := cursor.children[ck]
		if !cached {
			id, err := r.lookupOrCreate(ctx, Key{Kingdom: kingdom, Name: name, Level: level, Parent: parent})
			if err != nil {
				return 0, false, err
			}
			child = newNode(id)
			cursor.children[ck] = child
			r.nodes++
		}
		parent = child.id
		cursor = child
	}
	return parent, true, nil
}

// CacheSize reports how many taxon nodes the resolver has cached.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes
}

func (r *Resolver) lookupOrCreate(ctx context.Context, key Key) (int64, error) {
	id, found, err := r.store.FindTaxon(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("find taxon %s at %s: %w", key.Name, Levels[key.Level], err)
	}
	if found {
		return id, nil
	}
	id, err = r.store.CreateTaxon(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("create taxon %s at %s: %w", key.Name, Levels[key.Level], err)
	}
	return id, nil
}
