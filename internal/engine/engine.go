// Package engine provides the core database engine implementation for the Ignite storage system.
//
// The engine serves as the central coordinator and entry point for all database operations.
// It orchestrates the interaction between the on-disk data files (internal/iomanager), the
// in-memory keydir (internal/index), startup recovery (internal/recovery), atomic write
// batches (internal/batch), ordered iteration (internal/iterator), and compaction
// (internal/merge).
//
// The engine implements a thread-safe interface with proper lifecycle management, ensuring
// resources are properly initialized and cleaned up. Writes serialize through a single
// mutex; reads never block on it.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamNilotpal/ignite/internal/batch"
	"github.com/iamNilotpal/ignite/internal/codec"
	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/iamNilotpal/ignite/internal/dirlock"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/iomanager"
	"github.com/iamNilotpal/ignite/internal/iterator"
	"github.com/iamNilotpal/ignite/internal/merge"
	"github.com/iamNilotpal/ignite/internal/recovery"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/filesys"
	"github.com/iamNilotpal/ignite/pkg/options"
	"go.uber.org/zap"
)

// Engine represents the main database engine that coordinates all subsystems.
// It acts as the primary interface for database operations and manages the lifecycle
// of all internal components. The engine is designed to be thread-safe and supports
// concurrent operations while maintaining data consistency.
type Engine struct {
	dataDir string
	options *options.Options
	log     *zap.SugaredLogger

	closed atomic.Bool
	lock   *dirlock.Lock

	writeMu sync.Mutex // serializes appends and rotations
	idxMu   sync.RWMutex
	idx     index.Index
	io      *iomanager.Manager

	txnSeq         atomic.Uint64
	bytesSinceSync atomic.Uint64

	mergeMu sync.Mutex

	bgStop chan struct{}
	bgWg   sync.WaitGroup
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Open acquires a directory-level exclusive lock, runs recovery, and
// returns a ready Engine. Fails with DirectoryInUse if another process
// holds the lock.
func Open(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "engine configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}

	opts := config.Options
	log := config.Logger

	log.Infow("opening ignite engine", "dataDir", opts.DataDir, "indexType", opts.IndexType.String())

	if err := filesys.CreateDir(opts.DataDir, 0755, true); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create data directory").WithPath(opts.DataDir)
	}

	lock, err := dirlock.Acquire(opts.DataDir)
	if err != nil {
		return nil, err
	}

	idx, err := index.New(opts.IndexType)
	if err != nil {
		lock.Release()
		return nil, err
	}

	result, err := recovery.Scan(opts.DataDir, idx, opts.UseMMapAtStartup, log)
	if err != nil {
		lock.Release()
		return nil, err
	}

	activeID := result.ActiveFileID
	if len(result.FileIDs) == 0 {
		activeID = 1
	}

	mgr, err := iomanager.Open(
		opts.DataDir, result.FileIDs, activeID, opts.DataFileOptions.Size, log,
		func(id uint32) (datafile.Mode, error) {
			if opts.UseMMapAtStartup {
				return datafile.MemoryMapped, nil
			}
			return datafile.Standard, nil
		},
	)
	if err != nil {
		lock.Release()
		return nil, err
	}

	if opts.UseMMapAtStartup {
		for _, id := range mgr.ImmutableIDs() {
			f, err := mgr.Get(id)
			if err != nil {
				continue
			}
			if err := f.DowngradeToStandard(); err != nil {
				mgr.Close()
				lock.Release()
				return nil, err
			}
		}
	}

	e := &Engine{
		dataDir: opts.DataDir,
		options: opts,
		log:     log,
		lock:    lock,
		idx:     idx,
		io:      mgr,
	}
	e.txnSeq.Store(result.TxnSeq)

	if opts.AutoMergeCheckInterval > 0 {
		e.startBackgroundMerge(opts.AutoMergeCheckInterval)
	}

	log.Infow("ignite engine opened", "dataDir", opts.DataDir, "keyCount", idx.Size())
	return e, nil
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}
	return nil
}

// Put appends a Normal record with sequence 0 and updates the keydir.
func (e *Engine) Put(key, value []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if len(key) == 0 {
		return errors.NewEngineError(errors.ErrKeyIsEmpty, errors.ErrorCodeKeyIsEmpty, "key is empty").WithOperation("Put")
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	rec := codec.Record{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, key), Value: value}
	loc, err := e.appendRecordLocked(rec)
	if err != nil {
		return err
	}

	e.idxMu.Lock()
	e.idx.Put(key, loc)
	e.idxMu.Unlock()

	return nil
}

// Delete removes key. If the keydir has no entry for key, Delete
// short-circuits and returns nil without writing a tombstone.
func (e *Engine) Delete(key []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if len(key) == 0 {
		return errors.NewEngineError(errors.ErrKeyIsEmpty, errors.ErrorCodeKeyIsEmpty, "key is empty").WithOperation("Delete")
	}

	e.idxMu.RLock()
	_, exists := e.idx.Get(key)
	e.idxMu.RUnlock()
	if !exists {
		return nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	rec := codec.Record{Type: codec.RecordTombstone, Key: codec.EncodeSeqKey(0, key)}
	if _, err := e.appendRecordLocked(rec); err != nil {
		return err
	}

	e.idxMu.Lock()
	e.idx.Delete(key)
	e.idxMu.Unlock()

	return nil
}

// Get consults the keydir for key's location and reads/decodes the
// record there. Fails with KeyNotFound if absent, or defensively if the
// stored record unexpectedly decodes as a Tombstone.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	e.idxMu.RLock()
	loc, ok := e.idx.Get(key)
	e.idxMu.RUnlock()
	if !ok {
		return nil, errors.NewEngineError(errors.ErrKeyNotFound, errors.ErrorCodeKeyNotFound, "key not found").
			WithKey(string(key)).WithOperation("Get")
	}

	rec, err := e.readRecord(loc)
	if err != nil {
		return nil, err
	}
	if rec.Type != codec.RecordNormal {
		return nil, errors.NewEngineError(errors.ErrKeyNotFound, errors.ErrorCodeKeyNotFound, "key not found").
			WithKey(string(key)).WithOperation("Get")
	}

	return rec.Value, nil
}

// ListKeys returns every live key in ascending order.
func (e *Engine) ListKeys() ([][]byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.idxMu.RLock()
	defer e.idxMu.RUnlock()
	return e.idx.ListKeys(), nil
}

// Fold invokes fn on every (key, value) pair in ascending order, stopping
// early if fn returns false.
func (e *Engine) Fold(fn func(key, value []byte) bool) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.idxMu.RLock()
	entries := e.idx.Snapshot(false)
	e.idxMu.RUnlock()

	for _, entry := range entries {
		rec, err := e.readRecord(entry.Location)
		if err != nil {
			return err
		}
		if !fn(entry.Key, rec.Value) {
			break
		}
	}
	return nil
}

// Sync flushes the active file to disk.
func (e *Engine) Sync() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.io.Sync()
}

// Stat reports key count, reclaimable bytes, total disk size, and the
// directory path.
type Stat struct {
	KeyCount        int
	ReclaimableSize int64
	TotalDiskSize   int64
	DirPath         string
}

// Stat computes current occupancy statistics.
func (e *Engine) Stat() (Stat, error) {
	if err := e.checkOpen(); err != nil {
		return Stat{}, err
	}

	e.idxMu.RLock()
	entries := e.idx.Snapshot(false)
	keyCount := len(entries)
	e.idxMu.RUnlock()

	var liveBytes int64
	for _, entry := range entries {
		liveBytes += int64(entry.Location.RecordSize)
	}

	var totalSize int64
	totalSize += e.io.Active().Size()
	for _, id := range e.io.ImmutableIDs() {
		f, err := e.io.Get(id)
		if err != nil {
			continue
		}
		totalSize += f.Size()
	}

	reclaimable := totalSize - liveBytes
	if reclaimable < 0 {
		reclaimable = 0
	}

	return Stat{
		KeyCount:        keyCount,
		ReclaimableSize: reclaimable,
		TotalDiskSize:   totalSize,
		DirPath:         e.dataDir,
	}, nil
}

// Backup copies the whole data directory, excluding the lock file, to
// dest.
func (e *Engine) Backup(dest string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.io.Sync(); err != nil {
		return err
	}
	if err := filesys.CopyDir(e.dataDir, dest); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to back up data directory").
			WithPath(e.dataDir).WithDetail("dest", dest)
	}

	lockCopy := filepath.Join(dest, dirlock.LockFileName)
	if exists, _ := filesys.Exists(lockCopy); exists {
		_ = filesys.DeleteFile(lockCopy)
	}
	return nil
}

// NewWriteBatch constructs a Batch against this engine's write path,
// configured by opts.
func (e *Engine) NewWriteBatch(opts *options.WriteBatchOptions) *batch.Batch {
	if opts == nil {
		opts = &options.WriteBatchOptions{MaxBatchNum: options.DefaultMaxBatchNum, SyncOnCommit: options.DefaultSyncOnCommit}
	}
	return batch.New(e, opts.MaxBatchNum, opts.SyncOnCommit)
}

// NewIterator returns an Iterator snapshotting the keydir under opts.
func (e *Engine) NewIterator(opts options.IteratorOptions) *iterator.Iterator {
	e.idxMu.RLock()
	defer e.idxMu.RUnlock()
	return iterator.New(e.idx, e, opts.Prefix, opts.Reverse)
}

// Merge rotates the active file, then compacts every file below the new
// active file's id into a sibling merge directory, keeping only records
// the live keydir still points at, and replaces just those files with the
// merged ones. Files from the rotate onward are left untouched. Only one
// merge runs at a time.
func (e *Engine) Merge() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if !e.mergeMu.TryLock() {
		return errors.NewEngineError(errors.ErrMergeInProgress, errors.ErrorCodeMergeInProgress, "a merge is already running")
	}
	defer e.mergeMu.Unlock()

	e.writeMu.Lock()
	if _, err := e.io.Rotate(); err != nil {
		e.writeMu.Unlock()
		return err
	}
	// mergeBoundary is the id of the file that became active by the
	// rotate above. Every file below it is a merge candidate; it and
	// anything rotated in after it belongs to writes that happen while
	// the merge runs, and must never be touched by the swap.
	mergeBoundary := e.io.Active().ID()
	candidateIDs := e.io.ImmutableIDs()
	e.writeMu.Unlock()

	newIdx, err := index.New(e.options.IndexType)
	if err != nil {
		return err
	}

	openFile := func(id uint32) (*datafile.File, error) {
		return e.io.Get(id)
	}
	lookup := func(key []byte) (index.Location, bool) {
		e.idxMu.RLock()
		defer e.idxMu.RUnlock()
		return e.idx.Get(key)
	}

	mergedIDs, err := merge.Run(
		e.dataDir, candidateIDs, openFile, lookup, e.options.DataFileOptions.Size, newIdx, mergeBoundary, e.log,
	)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// Reconcile rather than replace the live keydir: a key whose current
	// location already points past mergeBoundary was written (or
	// rewritten, or deleted and rewritten) after the merge snapshot was
	// taken and is left exactly as-is. A key still pointing below the
	// boundary hasn't moved since the snapshot, so its location is
	// replaced with where the merge relocated it to.
	oldIdx := e.idx
	finalIdx, err := index.New(e.options.IndexType)
	if err != nil {
		return err
	}
	for _, entry := range oldIdx.Snapshot(false) {
		loc := entry.Location
		if loc.FileID < mergeBoundary {
			if relocated, ok := newIdx.Get(entry.Key); ok {
				loc = relocated
			}
		}
		finalIdx.Put(entry.Key, loc)
	}

	if err := e.io.ReconcileMerge(mergeBoundary, mergedIDs, e.log); err != nil {
		return err
	}

	e.idxMu.Lock()
	e.idx = finalIdx
	e.idxMu.Unlock()

	oldIdx.Close()
	newIdx.Close()

	e.log.Infow("merge complete", "liveKeys", finalIdx.Size(), "boundary", mergeBoundary, "mergedFiles", mergedIDs)
	return nil
}

// Close gracefully shuts down the engine and releases all associated resources.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return errors.NewEngineError(errors.ErrEngineClosed, errors.ErrorCodeEngineClosed, "engine is closed")
	}

	if e.bgStop != nil {
		close(e.bgStop)
		e.bgWg.Wait()
	}

	e.writeMu.Lock()
	syncErr := e.io.Sync()
	closeErr := e.io.Close()
	e.writeMu.Unlock()

	idxErr := e.idx.Close()
	lockErr := e.lock.Release()

	if syncErr != nil {
		return syncErr
	}
	if closeErr != nil {
		return closeErr
	}
	if idxErr != nil {
		return idxErr
	}
	return lockErr
}

// --- internal helpers -------------------------------------------------

// appendRecordLocked encodes and appends rec to the active file,
// rotating first if it would overflow the configured size, tracking the
// unsynced-byte counter and applying the fsync policy. Callers must hold
// writeMu.
func (e *Engine) appendRecordLocked(rec codec.Record) (index.Location, error) {
	data := codec.Encode(rec)

	if uint64(e.io.Active().Size())+uint64(len(data)) > e.options.DataFileOptions.Size {
		if _, err := e.io.Rotate(); err != nil {
			return index.Location{}, err
		}
	}

	active := e.io.Active()
	offset, err := active.Append(data)
	if err != nil {
		return index.Location{}, err
	}

	loc := index.Location{FileID: active.ID(), Offset: uint64(offset), RecordSize: uint64(len(data))}

	e.bytesSinceSync.Add(uint64(len(data)))
	if err := e.maybeSyncLocked(active); err != nil {
		return index.Location{}, err
	}

	return loc, nil
}

func (e *Engine) maybeSyncLocked(active *datafile.File) error {
	shouldSync := e.options.SyncWrites
	if !shouldSync && e.options.BytesPerSync > 0 && e.bytesSinceSync.Load() >= e.options.BytesPerSync {
		shouldSync = true
	}
	if !shouldSync {
		return nil
	}
	if err := active.Sync(); err != nil {
		return err
	}
	e.bytesSinceSync.Store(0)
	return nil
}

// readRecord reads and decodes the record at loc.
func (e *Engine) readRecord(loc index.Location) (codec.Record, error) {
	f, err := e.io.Get(loc.FileID)
	if err != nil {
		return codec.Record{}, errors.NewEngineError(errors.ErrDataFileNotFound, errors.ErrorCodeDataFileNotFound, "data file not found").
			WithFileID(loc.FileID)
	}

	data, err := f.ReadAt(int64(loc.Offset), int(loc.RecordSize))
	if err != nil {
		return codec.Record{}, err
	}

	header, err := codec.DecodeHeader(data)
	if err != nil {
		return codec.Record{}, errors.NewEngineError(errors.ErrInvalidCrc, errors.ErrorCodeInvalidCrc, "corrupt record header").
			WithFileID(loc.FileID)
	}

	rec, err := codec.DecodePayload(data[:header.Size], header, data[header.Size:])
	if err != nil {
		return codec.Record{}, errors.NewEngineError(errors.ErrInvalidCrc, errors.ErrorCodeInvalidCrc, "crc mismatch, record is corrupt").
			WithFileID(loc.FileID)
	}

	_, userKey, derr := codec.DecodeSeqKey(rec.Key)
	if derr == nil {
		rec.Key = userKey
	}
	return rec, nil
}

func (e *Engine) startBackgroundMerge(interval time.Duration) {
	e.bgStop = make(chan struct{})
	e.bgWg.Add(1)

	go func() {
		defer e.bgWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.bgStop:
				return
			case <-ticker.C:
				stat, err := e.Stat()
				if err != nil {
					continue
				}
				if stat.TotalDiskSize == 0 {
					continue
				}
				ratio := float64(stat.ReclaimableSize) / float64(stat.TotalDiskSize)
				if e.options.DataFileOptions.MergeRatio > 0 && ratio >= e.options.DataFileOptions.MergeRatio {
					if err := e.Merge(); err != nil {
						e.log.Warnw("automatic merge failed", "error", err)
					}
				}
			}
		}
	}()
}

// --- batch.Writer ------------------------------------------------------

func (e *Engine) NextTxnSeq() uint64 {
	return e.txnSeq.Add(1)
}

func (e *Engine) AppendRecord(rec codec.Record) (index.Location, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.appendRecordLocked(rec)
}

func (e *Engine) KeyExists(key []byte) bool {
	e.idxMu.RLock()
	defer e.idxMu.RUnlock()
	_, ok := e.idx.Get(key)
	return ok
}

func (e *Engine) ApplyLocation(key []byte, loc index.Location, tombstone bool) {
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	if tombstone {
		e.idx.Delete(key)
	} else {
		e.idx.Put(key, loc)
	}
}

func (e *Engine) SyncActive() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.io.Active().Sync()
}

func (e *Engine) PersistTxnSeq(seq uint64) error {
	return recovery.PersistSeqCounter(e.dataDir, seq)
}

// --- iterator.ValueReader ------------------------------------------------

func (e *Engine) ReadValue(loc index.Location) ([]byte, error) {
	rec, err := e.readRecord(loc)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (e *Engine) IsStale(loc index.Location) bool {
	_, err := e.io.Get(loc.FileID)
	return err != nil
}
