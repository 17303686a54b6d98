// Package iterator implements ordered traversal over a snapshot of the
// keydir taken at construction time. Values are fetched lazily from the
// underlying data files as the caller advances, rather than eagerly
// loading the whole snapshot into memory.
package iterator

import (
	"bytes"

	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// ValueReader resolves a keydir Location to the value bytes stored
// there. Engine implements this directly.
type ValueReader interface {
	ReadValue(loc index.Location) ([]byte, error)
	IsStale(loc index.Location) bool
}

// Iterator walks a fixed snapshot of (key, location) pairs in ascending
// or descending key order, optionally restricted to a key prefix.
type Iterator struct {
	reader  ValueReader
	entries []index.Entry
	pos     int
	reverse bool
}

// New takes a snapshot of idx (ascending, or descending if reverse is
// true), restricts it to keys beginning with prefix, and returns an
// Iterator positioned before the first matching entry.
func New(idx index.Index, reader ValueReader, prefix []byte, reverse bool) *Iterator {
	all := idx.Snapshot(reverse)

	entries := all[:0:0]
	for _, e := range all {
		if len(prefix) == 0 || bytes.HasPrefix(e.Key, prefix) {
			entries = append(entries, e)
		}
	}

	return &Iterator{reader: reader, entries: entries, pos: 0, reverse: reverse}
}

// Rewind returns the iterator to its first matching entry.
func (it *Iterator) Rewind() {
	it.pos = 0
}

// Valid reports whether the iterator currently refers to an entry.
func (it *Iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.entries)
}

// Next advances the iterator.
func (it *Iterator) Next() {
	it.pos++
}

// Seek advances the iterator to the first entry whose key is >= target
// in the iteration's own order (descending, if the iterator is reverse).
func (it *Iterator) Seek(target []byte) {
	for it.pos = 0; it.pos < len(it.entries); it.pos++ {
		k := it.entries[it.pos].Key
		cmp := bytes.Compare(k, target)
		if it.reverse {
			if cmp <= 0 {
				return
			}
		} else if cmp >= 0 {
			return
		}
	}
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.entries[it.pos].Key
}

// Value resolves and returns the current entry's value. It returns
// ErrStaleIterator if the data file the entry points at was removed by a
// merge that ran since the iterator's snapshot was taken.
func (it *Iterator) Value() ([]byte, error) {
	if !it.Valid() {
		return nil, errors.ErrEmptyKeyOnIterator
	}

	loc := it.entries[it.pos].Location
	if it.reader.IsStale(loc) {
		return nil, errors.ErrStaleIterator
	}

	return it.reader.ReadValue(loc)
}

// Close discards the iterator's snapshot.
func (it *Iterator) Close() error {
	it.entries = nil
	return nil
}
