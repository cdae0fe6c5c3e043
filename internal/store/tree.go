package store

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"kvmux/internal/wire"
)

// rootBucket holds every (table, key) pair in one single on-disk
// ordered key space.
var rootBucket = []byte("kv")

// Tree is the embedded on-disk engine, backed by go.etcd.io/bbolt (a
// single-file B+tree). Each logical (table, key) is stored under a
// composite physical key so that a table's pairs occupy one contiguous
// range, scanned with a cursor prefix seek.
//
// The physical key is a 4-byte big-endian length of the table name,
// followed by the raw table bytes, followed by the raw key bytes. A
// naive "{table}:{key}" separator notation cannot round-trip a table
// name that itself contains that separator, while a length-prefixed
// table name can never collide with a different table's prefix, so any
// valid UTF-8 table name round-trips.
type Tree struct {
	db *bolt.DB
}

// OpenTree opens (creating if needed) a bbolt database at path.
func OpenTree(path string) (*Tree, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &Error{Op: "init bucket", Err: err}
	}
	return &Tree{db: db}, nil
}

func tablePrefix(table string) []byte {
	b := make([]byte, 4+len(table))
	binary.BigEndian.PutUint32(b[:4], uint32(len(table)))
	copy(b[4:], table)
	return b
}

func physicalKey(table, key string) []byte {
	prefix := tablePrefix(table)
	return append(prefix, key...)
}

func (t *Tree) Get(table, key string) (wire.Value, bool, error) {
	pk := physicalKey(table, key)
	var v wire.Value
	var ok bool
	err := t.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(rootBucket).Get(pk)
		if raw == nil {
			return nil
		}
		parsed, err := wire.UnmarshalValue(raw)
		if err != nil {
			return err
		}
		v, ok = parsed, true
		return nil
	})
	if err != nil {
		return wire.Value{}, false, &Error{Op: "get", Err: err}
	}
	return v, ok, nil
}

func (t *Tree) Set(table, key string, value wire.Value) (wire.Value, bool, error) {
	pk := physicalKey(table, key)
	var prev wire.Value
	var had bool
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		if raw := b.Get(pk); raw != nil {
			parsed, err := wire.UnmarshalValue(raw)
			if err != nil {
				return err
			}
			prev, had = parsed, true
		}
		return b.Put(pk, wire.MarshalValue(value))
	})
	if err != nil {
		return wire.Value{}, false, &Error{Op: "set", Err: err}
	}
	return prev, had, nil
}

func (t *Tree) Contains(table, key string) (bool, error) {
	pk := physicalKey(table, key)
	var ok bool
	err := t.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(rootBucket).Get(pk) != nil
		return nil
	})
	if err != nil {
		return false, &Error{Op: "contains", Err: err}
	}
	return ok, nil
}

func (t *Tree) Del(table, key string) (wire.Value, bool, error) {
	pk := physicalKey(table, key)
	var prev wire.Value
	var had bool
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(rootBucket)
		raw := b.Get(pk)
		if raw == nil {
			return nil
		}
		parsed, err := wire.UnmarshalValue(raw)
		if err != nil {
			return err
		}
		prev, had = parsed, true
		return b.Delete(pk)
	})
	if err != nil {
		return wire.Value{}, false, &Error{Op: "del", Err: err}
	}
	return prev, had, nil
}

func (t *Tree) GetAll(table string) ([]wire.KvPair, error) {
	prefix := tablePrefix(table)
	var pairs []wire.KvPair
	err := t.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, raw := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, raw = c.Next() {
			v, err := wire.UnmarshalValue(raw)
			if err != nil {
				return err
			}
			pairs = append(pairs, wire.KvPair{Key: string(k[len(prefix):]), Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "get_all", Err: err}
	}
	return pairs, nil
}

// GetIter returns a genuinely incremental cursor over table's pairs,
// backed by one open read transaction. Concurrent writes during the
// scan are not reflected (best-effort):
// bbolt read transactions see a consistent snapshot as of their start.
func (t *Tree) GetIter(table string) (Iterator, error) {
	tx, err := t.db.Begin(false)
	if err != nil {
		return nil, &Error{Op: "get_iter", Err: err}
	}
	prefix := tablePrefix(table)
	c := tx.Bucket(rootBucket).Cursor()
	return &treeIterator{tx: tx, cursor: c, prefix: prefix, started: false}, nil
}

func (t *Tree) Close() error {
	if err := t.db.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

type treeIterator struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	prefix  []byte
	started bool
	done    bool
}

func (it *treeIterator) Next() (wire.KvPair, bool, error) {
	if it.done {
		return wire.KvPair{}, false, nil
	}
	var k, raw []byte
	if !it.started {
		k, raw = it.cursor.Seek(it.prefix)
		it.started = true
	} else {
		k, raw = it.cursor.Next()
	}
	if k == nil || !hasPrefix(k, it.prefix) {
		it.done = true
		return wire.KvPair{}, false, nil
	}
	v, err := wire.UnmarshalValue(raw)
	if err != nil {
		return wire.KvPair{}, false, fmt.Errorf("store: get_iter: %w", err)
	}
	return wire.KvPair{Key: string(k[len(it.prefix):]), Value: v}, true, nil
}

func (it *treeIterator) Close() error {
	return it.tx.Rollback()
}
