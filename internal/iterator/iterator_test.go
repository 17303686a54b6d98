package iterator

import (
	"testing"

	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader resolves every Location to a fixed value, except locations
// whose FileID is in stale, which it reports as removed.
type fakeReader struct {
	stale map[uint32]bool
}

func (r *fakeReader) ReadValue(loc index.Location) ([]byte, error) {
	return []byte("value"), nil
}

func (r *fakeReader) IsStale(loc index.Location) bool {
	return r.stale[loc.FileID]
}

func newPopulatedIndex() index.Index {
	idx := index.NewBTree()
	for _, k := range []string{"apple", "banana", "avocado", "cherry"} {
		idx.Put([]byte(k), index.Location{FileID: 1})
	}
	return idx
}

func TestIterator_AscendingTraversal(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, nil, false)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"apple", "avocado", "banana", "cherry"}, keys)
}

func TestIterator_DescendingTraversal(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, nil, true)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"cherry", "banana", "avocado", "apple"}, keys)
}

func TestIterator_PrefixFilter(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, []byte("a"), false)
	defer it.Close()

	var keys []string
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"apple", "avocado"}, keys)
}

func TestIterator_Seek(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, nil, false)
	defer it.Close()

	it.Seek([]byte("b"))
	require.True(t, it.Valid())
	assert.Equal(t, []byte("banana"), it.Key())
}

func TestIterator_SeekReverse(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, nil, true)
	defer it.Close()

	it.Seek([]byte("c"))
	require.True(t, it.Valid())
	assert.Equal(t, []byte("banana"), it.Key())

	it.Next()
	require.True(t, it.Valid())
	assert.Equal(t, []byte("avocado"), it.Key())
}

func TestIterator_ValueResolvesThroughReader(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{}, nil, false)
	defer it.Close()

	it.Rewind()
	val, err := it.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestIterator_StaleValueReturnsErrStaleIterator(t *testing.T) {
	idx := newPopulatedIndex()
	it := New(idx, &fakeReader{stale: map[uint32]bool{1: true}}, nil, false)
	defer it.Close()

	it.Rewind()
	_, err := it.Value()
	assert.ErrorIs(t, err, errors.ErrStaleIterator)
}

func TestIterator_ValueOnExhaustedIterator(t *testing.T) {
	idx := index.NewBTree()
	it := New(idx, &fakeReader{}, nil, false)
	defer it.Close()

	assert.False(t, it.Valid())
	_, err := it.Value()
	assert.ErrorIs(t, err, errors.ErrEmptyKeyOnIterator)
}
