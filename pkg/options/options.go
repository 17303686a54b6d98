// Package options provides data structures and functions for configuring
// the Ignite database. It defines every parameter that controls Ignite's
// on-disk layout, durability policy, index backend, and maintenance
// behavior, following the same functional-options pattern throughout.
package options

import (
	"strings"
	"time"
)

// IndexType selects the in-memory keydir backend an Engine uses. Both
// backends present identical ordering and concurrency semantics; the
// choice only affects the internal data structure.
type IndexType uint8

const (
	// IndexBTree backs the keydir with a mutex-guarded balanced tree.
	IndexBTree IndexType = iota
	// IndexSkipList backs the keydir with an ordered skiplist.
	IndexSkipList
)

// String renders the IndexType for logging and error messages.
func (t IndexType) String() string {
	switch t {
	case IndexSkipList:
		return "skiplist"
	default:
		return "btree"
	}
}

// dataFileOptions controls the append-only log file set: where it lives,
// how large a single file may grow, and when automatic merges kick in.
type dataFileOptions struct {
	// Size is the maximum size in bytes a data file may reach before the
	// engine rotates to a new active file.
	//
	//  - Default: 256MiB
	//  - Maximum: 4GiB
	//  - Minimum: 1MiB
	Size uint64 `json:"dataFileSize"`

	// MergeRatio is the reclaimable/total byte ratio that triggers an
	// automatic merge. 0 disables automatic triggering entirely; callers
	// may still invoke Merge directly at any ratio.
	//
	// Default: 0 (disabled)
	MergeRatio float64 `json:"dataFileMergeRatio"`
}

// Options defines every configuration parameter for an Ignite instance.
type Options struct {
	// DataDir is the base path under which data files, the hint file,
	// the transaction-sequence file, and the lock file are stored.
	//
	// Default: "/var/lib/ignitedb"
	DataDir string `json:"dataDir"`

	// SyncWrites, when true, calls fsync after every single record
	// append. This is the strongest durability setting and the most
	// expensive.
	//
	// Default: false
	SyncWrites bool `json:"syncWrites"`

	// BytesPerSync, when greater than zero, fsyncs once the number of
	// bytes appended since the last sync crosses this threshold. This is
	// independent of, and additive with, SyncWrites.
	//
	// Default: 0 (disabled)
	BytesPerSync uint64 `json:"bytesPerSync"`

	// IndexType selects the keydir backend.
	//
	// Default: IndexBTree
	IndexType IndexType `json:"indexType"`

	// UseMMapAtStartup enables memory-mapped sequential reads during
	// recovery, then demotes files back to standard I/O before accepting
	// writes.
	//
	// Default: true
	UseMMapAtStartup bool `json:"useMmapAtStartup"`

	// AutoMergeCheckInterval, when nonzero, starts a background ticker
	// that checks Stat() against DataFileOptions.MergeRatio and invokes
	// Merge when it is exceeded. This supplements, rather than replaces,
	// a caller invoking Merge directly.
	//
	// Default: 0 (disabled; the merge ratio is then never checked
	// automatically)
	AutoMergeCheckInterval time.Duration `json:"autoMergeCheckInterval"`

	// DataFileOptions configures the append-only log file set.
	DataFileOptions *dataFileOptions `json:"dataFileOptions"`

	// WriteBatchOptions configures the defaults new write batches are
	// created with.
	WriteBatchOptions *WriteBatchOptions `json:"writeBatchOptions"`
}

// WriteBatchOptions controls atomic write-batch behavior.
type WriteBatchOptions struct {
	// MaxBatchNum is the maximum number of buffered mutations a single
	// batch may hold before Commit refuses with BatchTooLarge.
	//
	// Default: 10000
	MaxBatchNum uint64 `json:"maxBatchNum"`

	// SyncOnCommit, when true, fsyncs the active data file once a batch's
	// TxnFinished marker has been appended.
	//
	// Default: false
	SyncOnCommit bool `json:"syncOnCommit"`
}

// IteratorOptions controls the snapshot an Iterator takes at construction.
type IteratorOptions struct {
	// Prefix restricts the iterator to keys beginning with this byte
	// string. An empty prefix matches every key.
	Prefix []byte `json:"prefix"`

	// Reverse iterates keys in descending order when true.
	Reverse bool `json:"reverse"`
}

// OptionFunc is a function type that modifies the Ignite system's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions resets every field to the package defaults.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		*o = opts
	}
}

// WithDataDir sets the primary data directory for Ignite.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithSyncWrites enables or disables fsync-per-write durability.
func WithSyncWrites(sync bool) OptionFunc {
	return func(o *Options) { o.SyncWrites = sync }
}

// WithBytesPerSync sets the unsynced-byte threshold that triggers an fsync.
func WithBytesPerSync(bytes uint64) OptionFunc {
	return func(o *Options) { o.BytesPerSync = bytes }
}

// WithIndexType selects the keydir backend.
func WithIndexType(indexType IndexType) OptionFunc {
	return func(o *Options) { o.IndexType = indexType }
}

// WithMMapAtStartup enables or disables memory-mapped recovery reads.
func WithMMapAtStartup(enabled bool) OptionFunc {
	return func(o *Options) { o.UseMMapAtStartup = enabled }
}

// WithAutoMergeCheckInterval enables a background ticker that checks the
// merge ratio and triggers Merge automatically.
func WithAutoMergeCheckInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.AutoMergeCheckInterval = interval
		}
	}
}

// WithDataFileSize sets the maximum size of individual data files.
func WithDataFileSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size >= MinDataFileSize && size <= MaxDataFileSize {
			o.DataFileOptions.Size = size
		}
	}
}

// WithDataFileMergeRatio sets the reclaimable-ratio automatic merge
// threshold. Values outside [0, 1) are ignored; validate explicitly with
// Options.Validate if you need a hard failure instead.
func WithDataFileMergeRatio(ratio float64) OptionFunc {
	return func(o *Options) {
		if ratio >= 0 && ratio < 1 {
			o.DataFileOptions.MergeRatio = ratio
		}
	}
}

// WithMaxBatchNum sets the default maximum buffered-mutation count for
// new write batches.
func WithMaxBatchNum(n uint64) OptionFunc {
	return func(o *Options) {
		if n > 0 {
			o.WriteBatchOptions.MaxBatchNum = n
		}
	}
}

// WithSyncOnCommit sets whether new write batches fsync on commit by default.
func WithSyncOnCommit(sync bool) OptionFunc {
	return func(o *Options) { o.WriteBatchOptions.SyncOnCommit = sync }
}

// Validate reports a structured validation error for any option value
// spec.md treats as a hard misconfiguration rather than a silently
// clamped default.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.DataDir) == "" {
		return validationErrDataDirRequired()
	}
	if o.DataFileOptions == nil || o.DataFileOptions.MergeRatio < 0 || o.DataFileOptions.MergeRatio >= 1 {
		return validationErrInvalidMergeRatio()
	}
	return nil
}
