package options

import "time"

const (
	// DefaultDataDir is the default base directory where Ignite stores
	// its data files, hint file, sequence file, and lock file.
	DefaultDataDir = "/var/lib/ignitedb"

	// MinDataFileSize is the smallest allowed value for DataFileOptions.Size.
	MinDataFileSize uint64 = 1 * 1024 * 1024

	// MaxDataFileSize is the largest allowed value for DataFileOptions.Size.
	MaxDataFileSize uint64 = 4 * 1024 * 1024 * 1024

	// DefaultDataFileSize is the out-of-the-box rotation threshold.
	DefaultDataFileSize uint64 = 256 * 1024 * 1024

	// DefaultDataFileMergeRatio disables automatic merge triggering.
	DefaultDataFileMergeRatio float64 = 0

	// DefaultMaxBatchNum bounds how many mutations a single write batch
	// may buffer before commit.
	DefaultMaxBatchNum uint64 = 10_000

	// DefaultSyncOnCommit leaves batch commits unsynced by default,
	// matching the engine's default SyncWrites=false durability posture.
	DefaultSyncOnCommit = false

	// DefaultAutoMergeCheckInterval leaves the background merge-ratio
	// checker disabled; callers invoke Merge explicitly.
	DefaultAutoMergeCheckInterval = time.Duration(0)
)

// defaultOptions holds the package-wide default configuration.
var defaultOptions = Options{
	DataDir:                DefaultDataDir,
	SyncWrites:             false,
	BytesPerSync:           0,
	IndexType:              IndexBTree,
	UseMMapAtStartup:       true,
	AutoMergeCheckInterval: DefaultAutoMergeCheckInterval,
	DataFileOptions: &dataFileOptions{
		Size:       DefaultDataFileSize,
		MergeRatio: DefaultDataFileMergeRatio,
	},
	WriteBatchOptions: &WriteBatchOptions{
		MaxBatchNum:  DefaultMaxBatchNum,
		SyncOnCommit: DefaultSyncOnCommit,
	},
}

// NewDefaultOptions returns a fresh copy of the default configuration; the
// nested pointer fields are copied so callers never share mutable state
// with the package-level default.
func NewDefaultOptions() Options {
	opts := defaultOptions
	dataFileOpts := *defaultOptions.DataFileOptions
	batchOpts := *defaultOptions.WriteBatchOptions
	opts.DataFileOptions = &dataFileOpts
	opts.WriteBatchOptions = &batchOpts
	return opts
}

// NewDefaultIteratorOptions returns the default iterator configuration: no
// prefix filter, ascending order.
func NewDefaultIteratorOptions() IteratorOptions {
	return IteratorOptions{Prefix: nil, Reverse: false}
}
