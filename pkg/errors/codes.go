package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary. This includes file system operations like reading or
	// writing segment files, network operations when communicating with remote
	// systems, and device I/O when accessing storage hardware.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints. This maps
	// to HTTP 400-series errors and indicates problems with the request itself
	// rather than system failures.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories. These are the equivalent of HTTP 500 errors and
	// indicate bugs, assertion failures, or other programming errors that
	// shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base error taxonomy to handle the
// unique failure modes that occur in persistent storage systems. These codes
// represent problems that are specific to the storage layer of your key-value
// store, particularly focusing on segment file management and data persistence.
const (
	// ErrorCodeSegmentCorrupted indicates that a segment file's data has been
	// damaged or is in an inconsistent state.
	ErrorCodeSegmentCorrupted ErrorCode = "SEGMENT_CORRUPTED"

	// ErrorCodeHeaderReadFailure occurs when the system cannot read the header
	// portion of a segment file. Headers contain critical metadata about the
	// segment's structure, so header read failures prevent access to the
	// entire segment and all data it contains.
	ErrorCodeHeaderReadFailure ErrorCode = "HEADER_READ_FAILURE"

	// ErrorCodePayloadReadFailure indicates problems reading the actual data
	// content from segment files after successfully reading the header. This
	// represents a more localized failure compared to header problems, as the
	// segment structure is intact but specific data regions are inaccessible.
	ErrorCodePayloadReadFailure ErrorCode = "PAYLOAD_READ_FAILURE"

	// ErrorCodeRecoveryFailed indicates that the storage system's attempt to
	// recover from a previous failure was unsuccessful. This represents a
	// compound failure where both the original problem and the recovery
	// mechanism have failed, creating a more serious operational situation.
	ErrorCodeRecoveryFailed ErrorCode = "STORAGE_RECOVERY_FAILED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a resource.
	// This is distinct from generic IO errors because it has a specific resolution path:
	// the user needs to adjust file/directory permissions or run with elevated privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of space.
	// This requires specific handling like cleanup operations or alerting administrators.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted read-only.
	// This requires administrative intervention to remount the filesystem with write permissions.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Index-specific error codes describe failures in the in-memory keydir:
// missing keys, structural corruption, and the bookkeeping that links an
// index entry back to the data file it points at.
const (
	// ErrorCodeIndexKeyNotFound indicates a lookup for a key that has no
	// live entry in the index, either because it never existed or was
	// tombstoned.
	ErrorCodeIndexKeyNotFound ErrorCode = "INDEX_KEY_NOT_FOUND"

	// ErrorCodeIndexInvalidSegmentID indicates an index entry that points
	// at a data file id the IO manager no longer has open, typically a
	// sign of a race with a concurrent merge.
	ErrorCodeIndexInvalidSegmentID ErrorCode = "INDEX_INVALID_SEGMENT_ID"

	// ErrorCodeIndexTimestampExtraction indicates a data file name could
	// not be parsed into its sequence id.
	ErrorCodeIndexTimestampExtraction ErrorCode = "INDEX_TIMESTAMP_EXTRACTION_FAILED"

	// ErrorCodeIndexCorrupted indicates the in-memory index reached an
	// inconsistent state and can only be trusted after a rebuild.
	ErrorCodeIndexCorrupted ErrorCode = "INDEX_CORRUPTED"
)

// Engine-specific error codes cover the public operation surface: the
// contract callers of pkg/ignite actually observe.
const (
	// ErrorCodeKeyIsEmpty indicates Put or Delete was called with an
	// empty key.
	ErrorCodeKeyIsEmpty ErrorCode = "KEY_IS_EMPTY"

	// ErrorCodeKeyNotFound indicates Get was called for a key with no
	// live entry, or whose entry unexpectedly decoded as a tombstone.
	ErrorCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// ErrorCodeDataFileNotFound indicates the keydir pointed at a file id
	// the IO manager doesn't have open.
	ErrorCodeDataFileNotFound ErrorCode = "DATA_FILE_NOT_FOUND"

	// ErrorCodeDirectoryInUse indicates another process already holds the
	// directory's exclusive lock file.
	ErrorCodeDirectoryInUse ErrorCode = "DIRECTORY_IN_USE"

	// ErrorCodeDirectoryPathInvalid indicates the configured data
	// directory path failed validation before open.
	ErrorCodeDirectoryPathInvalid ErrorCode = "DIRECTORY_PATH_INVALID"

	// ErrorCodeInvalidCrc indicates a record's CRC32 did not match its
	// payload; fatal outside of trailing-truncation recovery.
	ErrorCodeInvalidCrc ErrorCode = "INVALID_CRC"

	// ErrorCodeBatchTooLarge indicates a write batch exceeded
	// MaxBatchNum buffered records.
	ErrorCodeBatchTooLarge ErrorCode = "BATCH_TOO_LARGE"

	// ErrorCodeEmptyBatch indicates Commit was called on a batch with no
	// buffered mutations.
	ErrorCodeEmptyBatch ErrorCode = "EMPTY_BATCH"

	// ErrorCodeMergeInProgress indicates a second Merge call arrived
	// while one was already running.
	ErrorCodeMergeInProgress ErrorCode = "MERGE_IN_PROGRESS"

	// ErrorCodeEngineClosed indicates an operation was attempted after
	// Close.
	ErrorCodeEngineClosed ErrorCode = "ENGINE_CLOSED"

	// ErrorCodeInvalidMergeRatio indicates DataFileMergeRatio was
	// configured outside [0, 1).
	ErrorCodeInvalidMergeRatio ErrorCode = "INVALID_MERGE_RATIO"
)
