// Package ignite provides a high-performance key/value data store
// designed for fast read and write operations, inspired by Bitcask.
// It combines an in-memory keydir with an append-only log structure on
// disk to achieve high throughput. It is designed for applications
// requiring fast read and write operations, such as caching, session
// management, and real-time data processing, aiming to provide a
// simple, efficient, and reliable solution for embedded key-value
// storage in Go applications.
package ignite

import (
	"context"

	"github.com/iamNilotpal/ignite/internal/batch"
	"github.com/iamNilotpal/ignite/internal/engine"
	"github.com/iamNilotpal/ignite/internal/iterator"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/iamNilotpal/ignite/pkg/options"
)

// Instance represents an instance of the Ignite key/value data store.
// It encapsulates the core engine responsible for data handling and
// the configuration options for this specific database instance.
//
// Instance is the primary entry point for interacting with the Ignite store,
// providing methods for setting, getting, and deleting key-value pairs.
type Instance struct {
	engine  *engine.Engine   // The underlying database engine handling read/write operations.
	options *options.Options // Configuration options applied to this DB instance.
}

// Stat reports the occupancy statistics of the underlying database
// directory: live key count, reclaimable bytes, total disk usage, and
// the directory path.
type Stat = engine.Stat

// NewInstance creates and initializes a new Ignite DB instance, opening
// (or recovering) the directory named by WithDataDir and any other
// supplied options.
func NewInstance(ctx context.Context, service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	eng, err := engine.Open(ctx, &engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &defaultOpts}, nil
}

// Set stores a key-value pair in the database.
// If the key already exists, its value will be updated.
// The pair is appended to the log; whether it is fsynced before Set
// returns depends on the SyncWrites and BytesPerSync options.
func (i *Instance) Set(ctx context.Context, key string, value []byte) error {
	return i.engine.Put([]byte(key), value)
}

// Get retrieves the value associated with the given key.
func (i *Instance) Get(ctx context.Context, key string) ([]byte, error) {
	return i.engine.Get([]byte(key))
}

// Delete removes a key-value pair from the database. A delete for a key
// with no live entry is a no-op.
func (i *Instance) Delete(ctx context.Context, key string) error {
	return i.engine.Delete([]byte(key))
}

// ListKeys returns every live key in ascending order.
func (i *Instance) ListKeys(ctx context.Context) ([][]byte, error) {
	return i.engine.ListKeys()
}

// Fold invokes fn on every (key, value) pair in ascending order, stopping
// early if fn returns false.
func (i *Instance) Fold(ctx context.Context, fn func(key, value []byte) bool) error {
	return i.engine.Fold(fn)
}

// Sync flushes the active data file to disk.
func (i *Instance) Sync(ctx context.Context) error {
	return i.engine.Sync()
}

// Stat reports current occupancy statistics for this instance.
func (i *Instance) Stat(ctx context.Context) (Stat, error) {
	return i.engine.Stat()
}

// Backup copies the whole data directory, excluding the lock file, to dest.
func (i *Instance) Backup(ctx context.Context, dest string) error {
	return i.engine.Backup(dest)
}

// NewWriteBatch starts an atomic multi-key write batch. A nil opts uses
// the instance's configured WriteBatchOptions defaults.
func (i *Instance) NewWriteBatch(opts *options.WriteBatchOptions) *batch.Batch {
	if opts == nil {
		opts = i.options.WriteBatchOptions
	}
	return i.engine.NewWriteBatch(opts)
}

// NewIterator returns an ordered cursor snapshotting the keydir under opts.
func (i *Instance) NewIterator(opts options.IteratorOptions) *iterator.Iterator {
	return i.engine.NewIterator(opts)
}

// Merge compacts the data directory, discarding superseded and
// tombstoned records and rewriting a fresh file set.
func (i *Instance) Merge(ctx context.Context) error {
	return i.engine.Merge()
}

// Close gracefully shuts down the Ignite DB instance, releasing all
// associated resources, flushing any pending writes, and ensuring data
// durability.
func (i *Instance) Close(ctx context.Context) error {
	return i.engine.Close()
}
