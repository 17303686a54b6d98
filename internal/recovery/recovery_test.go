package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/ignite/internal/codec"
	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestScan_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	idx := index.NewBTree()

	result, err := Scan(dir, idx, false, testLogger())
	require.NoError(t, err)
	assert.Empty(t, result.FileIDs)
	assert.Equal(t, uint32(0), result.ActiveFileID)
	assert.Equal(t, uint64(0), result.TxnSeq)
}

func TestScan_RebuildsKeydirFromSingleFile(t *testing.T) {
	dir := t.TempDir()

	f, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	for _, rec := range []codec.Record{
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, []byte("a")), Value: []byte("1")},
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, []byte("b")), Value: []byte("2")},
		{Type: codec.RecordTombstone, Key: codec.EncodeSeqKey(0, []byte("a"))},
	} {
		_, err := f.Append(codec.Encode(rec))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	idx := index.NewBTree()
	result, err := Scan(dir, idx, false, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []uint32{1}, result.FileIDs)
	assert.Equal(t, uint32(1), result.ActiveFileID)

	_, ok := idx.Get([]byte("a"))
	assert.False(t, ok)
	loc, ok := idx.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, uint32(1), loc.FileID)
}

func TestScan_DiscardsUnfinishedBatch(t *testing.T) {
	dir := t.TempDir()

	f, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	// seq 1's two puts are appended, but the TxnFinished marker never is,
	// simulating a crash mid-commit.
	for _, rec := range []codec.Record{
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(1, []byte("x")), Value: []byte("1")},
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(1, []byte("y")), Value: []byte("2")},
	} {
		_, err := f.Append(codec.Encode(rec))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	idx := index.NewBTree()
	_, err = Scan(dir, idx, false, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 0, idx.Size())
}

func TestScan_AppliesFinishedBatchAtomically(t *testing.T) {
	dir := t.TempDir()

	f, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	for _, rec := range []codec.Record{
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(1, []byte("x")), Value: []byte("1")},
		{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(1, []byte("y")), Value: []byte("2")},
		{Type: codec.RecordTxnFinished, Key: codec.EncodeSeqKey(1, nil)},
	} {
		_, err := f.Append(codec.Encode(rec))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	idx := index.NewBTree()
	result, err := Scan(dir, idx, false, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Size())
	assert.Equal(t, uint64(1), result.TxnSeq)
}

func TestScan_TruncatedTailIsBenign(t *testing.T) {
	dir := t.TempDir()

	f, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	rec := codec.Record{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, []byte("a")), Value: []byte("1")}
	_, err = f.Append(codec.Encode(rec))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Simulate a torn write: a few garbage bytes appended after a crash.
	path := filepath.Join(dir, "000000001.data")
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.Write([]byte{0x00, 0x05})
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	idx := index.NewBTree()
	_, err = Scan(dir, idx, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())
}

func TestHintFile_RoundtripAndFastPath(t *testing.T) {
	dir := t.TempDir()

	idx := index.NewBTree()
	idx.Put([]byte("a"), index.Location{FileID: 1, Offset: 0, RecordSize: 10})
	idx.Put([]byte("b"), index.Location{FileID: 1, Offset: 10, RecordSize: 12})

	hintPath := filepath.Join(dir, HintFileName)
	require.NoError(t, WriteHintFile(hintPath, idx))

	loaded := index.NewBTree()
	found, err := loadHintFile(dir, loaded, testLogger())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, loaded.Size())

	loc, ok := loaded.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, uint64(10), loc.Offset)
}

func TestSeqCounter_PersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, PersistSeqCounter(dir, 42))
	assert.Equal(t, uint64(42), loadSeqCounter(dir, testLogger()))
}

func TestSeqCounter_MissingFileReturnsZero(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, uint64(0), loadSeqCounter(dir, testLogger()))
}

func TestApplyMerge_ReplacesOnlyFilesBelowBoundary(t *testing.T) {
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	mergeDir := dataDir + ".merge"

	require.NoError(t, os.MkdirAll(dataDir, 0755))
	// file 1 is superseded by the merge output; file 3 is the active
	// file, written to after the merge boundary was taken, and must
	// survive untouched.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, seginfo.GenerateName(1)), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, seginfo.GenerateName(3)), []byte("active"), 0644))

	require.NoError(t, os.MkdirAll(mergeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mergeDir, seginfo.GenerateName(1)), []byte("merged"), 0644))

	mergedIDs, err := ApplyMerge(dataDir, mergeDir, 2, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, mergedIDs)

	merged, err := os.ReadFile(filepath.Join(dataDir, seginfo.GenerateName(1)))
	require.NoError(t, err)
	assert.Equal(t, "merged", string(merged))

	active, err := os.ReadFile(filepath.Join(dataDir, seginfo.GenerateName(3)))
	require.NoError(t, err)
	assert.Equal(t, "active", string(active))

	_, err = os.Stat(mergeDir)
	assert.True(t, os.IsNotExist(err))

	boundary, ok := loadMergeBoundary(dataDir, testLogger())
	assert.True(t, ok)
	assert.Equal(t, uint32(2), boundary)
}

func TestReconcileMerge_ResumesFinishedSwap(t *testing.T) {
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	mergeDir := dataDir + ".merge"

	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, seginfo.GenerateName(1)), []byte("old"), 0644))

	require.NoError(t, os.MkdirAll(mergeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mergeDir, seginfo.GenerateName(1)), []byte("new"), 0644))
	require.NoError(t, WriteMergeFinishedMarker(mergeDir, 2))

	require.NoError(t, reconcileMerge(dataDir, testLogger()))

	content, err := os.ReadFile(filepath.Join(dataDir, seginfo.GenerateName(1)))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestReconcileMerge_DiscardsIncompleteMerge(t *testing.T) {
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	mergeDir := dataDir + ".merge"

	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, seginfo.GenerateName(1)), []byte("keep"), 0644))

	require.NoError(t, os.MkdirAll(mergeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mergeDir, seginfo.GenerateName(2)), []byte("partial"), 0644))

	require.NoError(t, reconcileMerge(dataDir, testLogger()))

	content, err := os.ReadFile(filepath.Join(dataDir, seginfo.GenerateName(1)))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))
	_, err = os.Stat(mergeDir)
	assert.True(t, os.IsNotExist(err))
}

func TestScan_TruncatesTornTailBeforeNextAppend(t *testing.T) {
	dir := t.TempDir()

	f, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	rec := codec.Record{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, []byte("a")), Value: []byte("1")}
	encoded := codec.Encode(rec)
	_, err = f.Append(encoded)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	goodSize := int64(len(encoded))

	path := filepath.Join(dir, seginfo.GenerateName(1))
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.Write([]byte{0x00, 0x05})
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	idx := index.NewBTree()
	_, err = Scan(dir, idx, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Size())

	// A clean reopen must have truncated the garbage tail away so the
	// next append lands immediately after the last good record, not
	// after an unreachable gap.
	f2, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	assert.Equal(t, goodSize, f2.Size())
	require.NoError(t, f2.Close())

	rec2 := codec.Record{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, []byte("b")), Value: []byte("2")}
	f3, err := datafile.Open(dir, 1, datafile.Standard, testLogger())
	require.NoError(t, err)
	_, err = f3.Append(codec.Encode(rec2))
	require.NoError(t, err)
	require.NoError(t, f3.Close())

	idx2 := index.NewBTree()
	_, err = Scan(dir, idx2, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, idx2.Size())
}
