package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends() map[string]func() Index {
	return map[string]func() Index{
		"btree":    func() Index { return NewBTree() },
		"skiplist": func() Index { return NewSkipList() },
	}
}

func TestIndex_PutGetDelete(t *testing.T) {
	for name, newIdx := range backends() {
		t.Run(name, func(t *testing.T) {
			idx := newIdx()
			defer idx.Close()

			loc := Location{FileID: 1, Offset: 10, RecordSize: 20}
			_, existed := idx.Put([]byte("a"), loc)
			assert.False(t, existed)

			got, ok := idx.Get([]byte("a"))
			require.True(t, ok)
			assert.Equal(t, loc, got)

			loc2 := Location{FileID: 2, Offset: 30, RecordSize: 40}
			prev, existed := idx.Put([]byte("a"), loc2)
			assert.True(t, existed)
			assert.Equal(t, loc, prev)

			prevDel, existed := idx.Delete([]byte("a"))
			assert.True(t, existed)
			assert.Equal(t, loc2, prevDel)

			_, ok = idx.Get([]byte("a"))
			assert.False(t, ok)
		})
	}
}

func TestIndex_DeleteMissingKey(t *testing.T) {
	for name, newIdx := range backends() {
		t.Run(name, func(t *testing.T) {
			idx := newIdx()
			defer idx.Close()

			_, existed := idx.Delete([]byte("missing"))
			assert.False(t, existed)
		})
	}
}

func TestIndex_SizeAndListKeys(t *testing.T) {
	for name, newIdx := range backends() {
		t.Run(name, func(t *testing.T) {
			idx := newIdx()
			defer idx.Close()

			keys := []string{"banana", "apple", "cherry"}
			for _, k := range keys {
				idx.Put([]byte(k), Location{FileID: 1})
			}
			assert.Equal(t, 3, idx.Size())

			sort.Strings(keys)
			var got []string
			for _, k := range idx.ListKeys() {
				got = append(got, string(k))
			}
			assert.Equal(t, keys, got)
		})
	}
}

func TestIndex_SnapshotOrdering(t *testing.T) {
	for name, newIdx := range backends() {
		t.Run(name, func(t *testing.T) {
			idx := newIdx()
			defer idx.Close()

			for _, k := range []string{"b", "a", "c"} {
				idx.Put([]byte(k), Location{FileID: 1})
			}

			forward := idx.Snapshot(false)
			require.Len(t, forward, 3)
			assert.Equal(t, []byte("a"), forward[0].Key)
			assert.Equal(t, []byte("b"), forward[1].Key)
			assert.Equal(t, []byte("c"), forward[2].Key)

			backward := idx.Snapshot(true)
			require.Len(t, backward, 3)
			assert.Equal(t, []byte("c"), backward[0].Key)
			assert.Equal(t, []byte("a"), backward[2].Key)
		})
	}
}

func TestLocation_EncodeDecode_Roundtrip(t *testing.T) {
	loc := Location{FileID: 7, Offset: 1024, RecordSize: 256}
	encoded := EncodeLocation(loc)

	decoded, err := DecodeLocation(encoded)
	require.NoError(t, err)
	assert.Equal(t, loc, decoded)
}

func TestLocation_DecodeMalformed(t *testing.T) {
	_, err := DecodeLocation(nil)
	assert.Error(t, err)
}
