// Package datafile wraps a single on-disk log file with the two read
// modes Ignite needs: Standard, backed by *os.File, for the steady-state
// append/read path, and MemoryMapped, backed by golang.org/x/exp/mmap,
// for the sequential scan recovery performs at startup. A file opened in
// MemoryMapped mode is demoted to Standard before the engine accepts its
// first write, since the mmap reader this package uses is read-only.
package datafile

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"go.uber.org/zap"
	mmapreader "golang.org/x/exp/mmap"
)

// Mode selects how a File services reads.
type Mode uint8

const (
	// Standard reads through *os.File.ReadAt, same handle writes use.
	Standard Mode = iota
	// MemoryMapped reads through a read-only golang.org/x/exp/mmap.ReaderAt.
	MemoryMapped
)

// File is one append-only data file: an active file accepts Append calls,
// an immutable one only ever serves ReadAt.
type File struct {
	mu sync.RWMutex

	id   uint32
	path string
	log  *zap.SugaredLogger

	mode Mode
	w    *os.File          // non-nil whenever writes are possible (always true once Downgrade runs)
	mr   *mmapreader.ReaderAt // non-nil only while mode == MemoryMapped

	size atomic.Int64
}

// Open opens or creates the data file identified by fileID under dir in
// the requested mode. Standard mode opens the file read-write and seeks
// to its end, ready to Append. MemoryMapped mode opens a read-only mmap
// reader and is only valid for files the caller does not intend to
// append to before calling DowngradeToStandard.
func Open(dir string, fileID uint32, mode Mode, log *zap.SugaredLogger) (*File, error) {
	path := filepath.Join(dir, seginfo.GenerateName(fileID))

	f := &File{id: fileID, path: path, log: log, mode: mode}

	switch mode {
	case MemoryMapped:
		reader, err := mmapreader.Open(path)
		if err != nil {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to mmap data file").
				WithFileName(filepath.Base(path)).
				WithPath(path)
		}
		f.mr = reader
		f.size.Store(int64(reader.Len()))

	default:
		w, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to open data file").
				WithFileName(filepath.Base(path)).
				WithPath(path)
		}

		offset, err := w.Seek(0, io.SeekEnd)
		if err != nil {
			w.Close()
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to end of data file").
				WithFileName(filepath.Base(path)).
				WithPath(path)
		}

		f.w = w
		f.mode = Standard
		f.size.Store(offset)
	}

	return f, nil
}

// ID returns the numeric file identifier this File was opened with.
func (f *File) ID() uint32 { return f.id }

// Path returns the filesystem path this File was opened from.
func (f *File) Path() string { return f.path }

// Mode reports the current read mode.
func (f *File) Mode() Mode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mode
}

// Size returns the current logical length of the file in bytes.
func (f *File) Size() int64 {
	return f.size.Load()
}

// Append writes data to the end of the file and returns the byte offset
// it was written at. Only valid in Standard mode.
func (f *File) Append(data []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode != Standard || f.w == nil {
		return 0, errors.NewStorageError(
			nil, errors.ErrorCodeIO, "cannot append to a file opened in memory-mapped mode",
		).WithFileName(filepath.Base(f.path)).WithPath(f.path)
	}

	offset := f.size.Load()
	n, err := f.w.Write(data)
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append to data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path).
			WithOffset(int(offset))
	}

	f.size.Add(int64(n))
	return offset, nil
}

// ReadAt reads exactly length bytes starting at offset.
func (f *File) ReadAt(offset int64, length int) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := make([]byte, length)

	var n int
	var err error
	if f.mode == MemoryMapped {
		n, err = f.mr.ReadAt(buf, offset)
	} else {
		n, err = f.w.ReadAt(buf, offset)
	}

	if err != nil && err != io.EOF {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path).
			WithOffset(int(offset))
	}
	if n < length {
		return nil, errors.NewStorageError(
			io.ErrUnexpectedEOF, errors.ErrorCodeIO, "short read from data file",
		).WithFileName(filepath.Base(f.path)).WithPath(f.path).WithOffset(int(offset))
	}

	return buf, nil
}

// Sync flushes the file to stable storage. A no-op in MemoryMapped mode.
func (f *File) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.mode != Standard || f.w == nil {
		return nil
	}
	if err := f.w.Sync(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to fsync data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path)
	}
	return nil
}

// Truncate shrinks the file to size bytes, healing a torn write left by a
// crash mid-append. Only valid in Standard mode.
func (f *File) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode != Standard || f.w == nil {
		return errors.NewStorageError(
			nil, errors.ErrorCodeIO, "cannot truncate a memory-mapped file",
		).WithFileName(filepath.Base(f.path)).WithPath(f.path)
	}
	if err := f.w.Truncate(size); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to truncate data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path).
			WithOffset(int(size))
	}
	if _, err := f.w.Seek(size, io.SeekStart); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek after truncating data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path).
			WithOffset(int(size))
	}

	f.size.Store(size)
	return nil
}

// DowngradeToStandard closes a MemoryMapped reader and reopens the file
// through *os.File, positioned for Append. Recovery calls this on every
// file it scanned with mmap before the engine accepts its first write,
// since the mmap reader is read-only.
func (f *File) DowngradeToStandard() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode == Standard {
		return nil
	}

	if f.mr != nil {
		if err := f.mr.Close(); err != nil {
			return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close mmap reader").
				WithFileName(filepath.Base(f.path)).
				WithPath(f.path)
		}
		f.mr = nil
	}

	w, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to reopen data file as standard").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path)
	}

	offset, err := w.Seek(0, io.SeekEnd)
	if err != nil {
		w.Close()
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to end after downgrade").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path)
	}

	f.w = w
	f.mode = Standard
	f.size.Store(offset)
	return nil
}

// Close releases the underlying file handle or mmap reader.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.mr != nil {
		err = f.mr.Close()
		f.mr = nil
	}
	if f.w != nil {
		if cerr := f.w.Close(); err == nil {
			err = cerr
		}
		f.w = nil
	}
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close data file").
			WithFileName(filepath.Base(f.path)).
			WithPath(f.path)
	}
	return nil
}
