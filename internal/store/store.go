// Package store implements the storage contract: a table × key →
// typed value map with get/set/del/contains and full-table
// enumeration, backed by two interchangeable engines — an in-memory
// sharded map and an embedded on-disk tree (go.etcd.io/bbolt).
package store

import (
	"fmt"

	"kvmux/internal/wire"
)

// Error wraps an engine failure (I/O, corruption, serialization).
// Absence of a key is never an Error; callers see it as a false/zero
// second return value instead.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Engine is the storage abstraction both the memory and tree
// implementations satisfy. All operations are single-key atomic; no
// multi-key atomicity is offered.
type Engine interface {
	// Get returns the value for (table, key), or ok=false if absent.
	Get(table, key string) (v wire.Value, ok bool, err error)
	// Set stores value for (table, key), creating table on demand, and
	// returns the previous value if one existed.
	Set(table, key string, value wire.Value) (prev wire.Value, hadPrev bool, err error)
	// Contains reports whether (table, key) exists.
	Contains(table, key string) (bool, error)
	// Del removes (table, key) and returns the removed value if present.
	Del(table, key string) (prev wire.Value, hadPrev bool, err error)
	// GetAll returns every pair in table, unordered, empty if table is absent.
	GetAll(table string) ([]wire.KvPair, error)
	// GetIter returns a lazy cursor over table's pairs.
	GetIter(table string) (Iterator, error)
	// Close releases any resources held by the engine.
	Close() error
}

// Iterator is a lazy sequence of KvPairs terminating at end-of-table.
type Iterator interface {
	// Next advances the iterator. It returns ok=false at end-of-table.
	Next() (pair wire.KvPair, ok bool, err error)
	// Close releases resources held by the iterator.
	Close() error
}

// sliceIterator adapts a pre-materialized slice to the Iterator
// interface. Memory's GetIter uses it, since a shard's map has no
// native cursor to scan incrementally; Tree's GetIter instead wraps a
// real bbolt cursor (see treeIterator) because bbolt already gives it
// one for free.
type sliceIterator struct {
	pairs []wire.KvPair
	pos   int
}

func (it *sliceIterator) Next() (wire.KvPair, bool, error) {
	if it.pos >= len(it.pairs) {
		return wire.KvPair{}, false, nil
	}
	p := it.pairs[it.pos]
	it.pos++
	return p, true, nil
}

func (it *sliceIterator) Close() error { return nil }
