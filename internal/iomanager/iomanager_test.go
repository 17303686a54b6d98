package iomanager

import (
	"testing"

	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestManager_OpenFreshDirectory(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 1024, testLogger(), nil)
	require.NoError(t, err)
	defer m.Close()

	require.NotNil(t, m.Active())
	assert.Equal(t, uint32(0), m.Active().ID())
	assert.Empty(t, m.ImmutableIDs())
}

func TestManager_RotateMovesActiveToImmutable(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 1024, testLogger(), nil)
	require.NoError(t, err)
	defer m.Close()

	retired, err := m.Rotate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), retired)
	assert.Equal(t, uint32(1), m.Active().ID())
	assert.Equal(t, []uint32{0}, m.ImmutableIDs())

	f, err := m.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), f.ID())
}

func TestManager_NeedsRotation(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 4, testLogger(), nil)
	require.NoError(t, err)
	defer m.Close()

	assert.False(t, m.NeedsRotation())

	_, err = m.Active().Append([]byte("abcdef"))
	require.NoError(t, err)
	assert.True(t, m.NeedsRotation())
}

func TestManager_GetUnknownFile(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 1024, testLogger(), nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Get(99)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestManager_RemoveImmutable(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 1024, testLogger(), nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Rotate()
	require.NoError(t, err)

	require.NoError(t, m.RemoveImmutable(0))
	_, err = m.Get(0)
	assert.ErrorIs(t, err, ErrFileNotFound)

	err = m.RemoveImmutable(0)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestManager_OpenExistingFilesWithMode(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir, nil, 0, 1024, testLogger(), nil)
	require.NoError(t, err)
	_, err = m.Active().Append([]byte("data"))
	require.NoError(t, err)
	_, err = m.Rotate()
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := Open(dir, []uint32{0, 1}, 1, 1024, testLogger(), func(id uint32) (datafile.Mode, error) {
		return datafile.MemoryMapped, nil
	})
	require.NoError(t, err)
	defer reopened.Close()

	f, err := reopened.Get(0)
	require.NoError(t, err)
	assert.Equal(t, datafile.MemoryMapped, f.Mode())
	assert.Equal(t, uint32(1), reopened.Active().ID())
}
