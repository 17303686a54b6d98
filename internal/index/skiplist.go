package index

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/huandu/skiplist"
)

// bytesComparable orders []byte keys for huandu/skiplist, which compares
// arbitrary interface{} keys via a Comparable rather than a builtin type.
type bytesComparable struct{}

func (bytesComparable) Compare(lhs, rhs any) int {
	return bytes.Compare(lhs.([]byte), rhs.([]byte))
}

// CalcScore maps a key's first eight bytes, read big-endian, to a score.
// The skiplist orders elements by score first and falls back to Compare
// only on equal scores, so the score never orders two keys differently
// from Compare.
func (bytesComparable) CalcScore(key any) float64 {
	var buf [8]byte
	copy(buf[:], key.([]byte))
	return float64(binary.BigEndian.Uint64(buf[:]))
}

// IndexSkipList is a keydir backed by a mutex-guarded huandu/skiplist.
// The library itself is not safe for concurrent use, so every access in
// this file takes the guarding mutex; this is a deliberate, documented
// trade against a literal lock-free skiplist, which nothing in the
// retrieved pack provides.
type IndexSkipList struct {
	mu sync.RWMutex
	sl *skiplist.SkipList
}

// NewSkipList constructs an empty IndexSkipList.
func NewSkipList() *IndexSkipList {
	return &IndexSkipList{sl: skiplist.New(bytesComparable{})}
}

func (idx *IndexSkipList) Put(key []byte, loc Location) (Location, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	k := append([]byte(nil), key...)
	var prev Location
	var existed bool
	if el := idx.sl.Get(k); el != nil {
		prev, existed = el.Value.(Location), true
	}
	idx.sl.Set(k, loc)
	return prev, existed
}

func (idx *IndexSkipList) Get(key []byte) (Location, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	el := idx.sl.Get(key)
	if el == nil {
		return Location{}, false
	}
	return el.Value.(Location), true
}

func (idx *IndexSkipList) Delete(key []byte) (Location, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	el := idx.sl.Remove(key)
	if el == nil {
		return Location{}, false
	}
	return el.Value.(Location), true
}

func (idx *IndexSkipList) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.sl.Len()
}

func (idx *IndexSkipList) ListKeys() [][]byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := make([][]byte, 0, idx.sl.Len())
	for el := idx.sl.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key().([]byte))
	}
	return keys
}

// Snapshot walks the skiplist forward, since the library exposes no
// backward cursor, then reverses the result in place when reverse is
// requested.
func (idx *IndexSkipList) Snapshot(reverse bool) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]Entry, 0, idx.sl.Len())
	for el := idx.sl.Front(); el != nil; el = el.Next() {
		entries = append(entries, Entry{Key: el.Key().([]byte), Location: el.Value.(Location)})
	}

	if reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return entries
}

func (idx *IndexSkipList) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.sl = skiplist.New(bytesComparable{})
	return nil
}
