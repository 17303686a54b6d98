// Package iomanager owns the set of data files that make up one Ignite
// log directory: exactly one active file accepting Append calls, and a
// map of immutable files kept open for reads. Rotation swaps the active
// file out for a freshly created one once it crosses the configured size
// threshold.
package iomanager

import (
	stdErrors "errors"
	"sync"

	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"go.uber.org/zap"
)

// ErrFileNotFound is returned by Get for a file id the manager does not
// know about.
var ErrFileNotFound = stdErrors.New("iomanager: data file not found")

// Manager holds every open data file in a directory: the active file and
// every immutable one, keyed by file id.
type Manager struct {
	mu sync.RWMutex

	dir         string
	maxFileSize uint64
	log         *zap.SugaredLogger

	active    *datafile.File
	immutable map[uint32]*datafile.File
}

// Open builds a Manager over every file id supplied. activeID must be the
// largest of ids and is opened in Standard mode; every other id is opened
// in the mode openImmutable returns for it.
func Open(
	dir string,
	ids []uint32,
	activeID uint32,
	maxFileSize uint64,
	log *zap.SugaredLogger,
	openImmutable func(id uint32) (datafile.Mode, error),
) (*Manager, error) {
	m := &Manager{
		dir:         dir,
		maxFileSize: maxFileSize,
		log:         log,
		immutable:   make(map[uint32]*datafile.File, len(ids)),
	}

	for _, id := range ids {
		if id == activeID {
			continue
		}

		mode := datafile.Standard
		if openImmutable != nil {
			m2, err := openImmutable(id)
			if err != nil {
				m.closeAll()
				return nil, err
			}
			mode = m2
		}

		f, err := datafile.Open(dir, id, mode, log)
		if err != nil {
			m.closeAll()
			return nil, err
		}
		m.immutable[id] = f
	}

	active, err := datafile.Open(dir, activeID, datafile.Standard, log)
	if err != nil {
		m.closeAll()
		return nil, err
	}
	m.active = active

	return m, nil
}

// Active returns the current active file.
func (m *Manager) Active() *datafile.File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Get returns the file with the given id, active or immutable.
func (m *Manager) Get(id uint32) (*datafile.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active != nil && m.active.ID() == id {
		return m.active, nil
	}
	if f, ok := m.immutable[id]; ok {
		return f, nil
	}
	return nil, ErrFileNotFound
}

// NeedsRotation reports whether the active file has reached the
// configured size threshold.
func (m *Manager) NeedsRotation() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(m.active.Size()) >= m.maxFileSize
}

// Rotate demotes the current active file to immutable and opens a fresh
// active file with the next id, returning the id of the file that was
// just retired.
func (m *Manager) Rotate() (retiredID uint32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	retiredID = m.active.ID()
	nextID := retiredID + 1

	fresh, err := datafile.Open(m.dir, nextID, datafile.Standard, m.log)
	if err != nil {
		return 0, err
	}

	m.immutable[retiredID] = m.active
	m.active = fresh

	m.log.Infow("rotated active data file", "retiredID", retiredID, "newActiveID", nextID)
	return retiredID, nil
}

// ImmutableIDs returns every immutable file id currently open.
func (m *Manager) ImmutableIDs() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint32, 0, len(m.immutable))
	for id := range m.immutable {
		ids = append(ids, id)
	}
	return ids
}

// RemoveImmutable closes and forgets the immutable file with the given
// id. Used by merge to retire files it has fully compacted away.
func (m *Manager) RemoveImmutable(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.immutable[id]
	if !ok {
		return ErrFileNotFound
	}
	delete(m.immutable, id)

	if err := f.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close removed data file")
	}
	return nil
}

// Sync fsyncs the active file.
func (m *Manager) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Sync()
}

// ReconcileMerge replaces every open immutable handle with id < boundary
// with freshly opened handles over newIDs, the file ids a completed merge
// produced. Handles for ids >= boundary — the active file and anything
// rotated in during the merge — are left untouched, since the merge never
// touched those files on disk.
func (m *Manager) ReconcileMerge(boundary uint32, newIDs []uint32, log *zap.SugaredLogger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, f := range m.immutable {
		if id >= boundary {
			continue
		}
		if err := f.Close(); err != nil {
			log.Warnw("failed to close superseded data file", "fileID", id, "error", err)
		}
		delete(m.immutable, id)
	}

	for _, id := range newIDs {
		if id >= boundary {
			continue
		}
		f, err := datafile.Open(m.dir, id, datafile.Standard, m.log)
		if err != nil {
			return err
		}
		m.immutable[id] = f
	}

	return nil
}

func (m *Manager) closeAll() {
	if m.active != nil {
		m.active.Close()
	}
	for _, f := range m.immutable {
		f.Close()
	}
}

// Close closes every open file the manager owns.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if m.active != nil {
		if err := m.active.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range m.immutable {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
