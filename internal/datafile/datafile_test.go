package datafile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestFile_OpenAppendRead(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	defer f.Close()

	offset, err := f.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, int64(5), f.Size())

	offset2, err := f.Append([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), offset2)

	got, err := f.ReadAt(0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got2, err := f.ReadAt(5, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got2)
}

func TestFile_ReopenContinuesAtEnd(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	_, err = f.Append([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	defer f2.Close()
	assert.Equal(t, int64(3), f2.Size())

	offset, err := f2.Append([]byte("def"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), offset)
}

func TestFile_Truncate(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append([]byte("hello world"))
	require.NoError(t, err)

	require.NoError(t, f.Truncate(5))
	assert.Equal(t, int64(5), f.Size())

	got, err := f.ReadAt(0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestFile_ReadAtShortRead(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append([]byte("ab"))
	require.NoError(t, err)

	_, err = f.ReadAt(0, 10)
	assert.Error(t, err)
}

func TestFile_MemoryMappedThenDowngrade(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(dir, 1, Standard, testLogger())
	require.NoError(t, err)
	_, err = f.Append([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	mmapped, err := Open(dir, 1, MemoryMapped, testLogger())
	require.NoError(t, err)
	assert.Equal(t, MemoryMapped, mmapped.Mode())

	got, err := mmapped.ReadAt(0, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	_, err = mmapped.Append([]byte("x"))
	assert.Error(t, err)

	require.NoError(t, mmapped.DowngradeToStandard())
	assert.Equal(t, Standard, mmapped.Mode())

	offset, err := mmapped.Append([]byte("!"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), offset)

	defer mmapped.Close()
}
