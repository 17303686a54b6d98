// Package batch implements atomic multi-key write batches: a set of Put
// and Delete calls buffered in memory and applied to the log under a
// single transaction sequence, so either every buffered mutation becomes
// visible or none of them do.
package batch

import (
	stdErrors "errors"

	"github.com/iamNilotpal/ignite/internal/codec"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/errors"
)

// Writer is the slice of engine behavior a Batch needs to commit itself.
// Engine implements this directly so batch never imports engine, which
// would create an import cycle.
type Writer interface {
	// NextTxnSeq allocates and returns the next unused transaction
	// sequence number.
	NextTxnSeq() uint64

	// AppendRecord writes rec to the active data file, rotating first if
	// necessary, and returns where it landed.
	AppendRecord(rec codec.Record) (index.Location, error)

	// ApplyLocation updates the keydir for key: Put when tombstone is
	// false, Delete when true.
	ApplyLocation(key []byte, loc index.Location, tombstone bool)

	// SyncActive fsyncs the active data file.
	SyncActive() error

	// PersistTxnSeq durably records that seq has been consumed.
	PersistTxnSeq(seq uint64) error

	// KeyExists reports whether key has a live entry in the keydir,
	// independent of anything buffered in a batch.
	KeyExists(key []byte) bool
}

// op is one buffered mutation, kept in insertion order since Go maps
// don't preserve it and a batch must replay writes in the order the
// caller made them.
type op struct {
	key       []byte
	value     []byte
	tombstone bool
}

// Batch buffers Put/Delete calls for atomic commit. A Batch is not safe
// for concurrent use; each goroutine should use its own.
type Batch struct {
	w            Writer
	maxBatchNum  uint64
	syncOnCommit bool

	order  []string // insertion order of keys, for deterministic replay
	pending map[string]op

	committed bool
}

// New constructs an empty Batch against w, governed by maxBatchNum
// buffered mutations and syncOnCommit's fsync policy.
func New(w Writer, maxBatchNum uint64, syncOnCommit bool) *Batch {
	return &Batch{
		w:            w,
		maxBatchNum:  maxBatchNum,
		syncOnCommit: syncOnCommit,
		pending:      make(map[string]op),
	}
}

// Put buffers a key/value write. A later Put or Delete for the same key
// within the same batch replaces it without growing the batch size.
func (b *Batch) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.NewEngineError(errors.ErrKeyIsEmpty, errors.ErrorCodeKeyIsEmpty, "key is empty").WithOperation("Batch.Put")
	}
	b.buffer(key, op{key: key, value: value})
	return b.checkSize()
}

// Delete buffers a tombstone for key. If key was Put earlier in this same
// batch and has no live entry on disk, the buffered Put is simply dropped
// instead: there is nothing committed to tombstone, so the delete has no
// disk effect.
func (b *Batch) Delete(key []byte) error {
	if len(key) == 0 {
		return errors.NewEngineError(errors.ErrKeyIsEmpty, errors.ErrorCodeKeyIsEmpty, "key is empty").WithOperation("Batch.Delete")
	}

	k := string(key)
	if o, exists := b.pending[k]; exists && !o.tombstone && !b.w.KeyExists(key) {
		b.removeOrder(k)
		delete(b.pending, k)
		return nil
	}

	b.buffer(key, op{key: key, tombstone: true})
	return b.checkSize()
}

func (b *Batch) buffer(key []byte, o op) {
	k := string(key)
	if _, exists := b.pending[k]; !exists {
		b.order = append(b.order, k)
	}
	b.pending[k] = o
}

// removeOrder splices k out of the insertion-order slice.
func (b *Batch) removeOrder(k string) {
	for i, existing := range b.order {
		if existing == k {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *Batch) checkSize() error {
	if b.maxBatchNum > 0 && uint64(len(b.pending)) > b.maxBatchNum {
		return errors.NewEngineError(errors.ErrBatchTooLarge, errors.ErrorCodeBatchTooLarge, "batch exceeds configured max batch size").
			WithOperation("Batch.Commit")
	}
	return nil
}

// ErrEmptyCommit is not returned by Commit; Commit reports an empty batch
// with an EngineError wrapping errors.ErrEmptyBatch.
var ErrEmptyCommit = stdErrors.New("batch: nothing buffered")

// Commit allocates a transaction sequence, appends every buffered
// mutation under that sequence, appends a TxnFinished marker, and only
// then applies every mutation to the keydir. A crash at any point before
// the TxnFinished record lands leaves the keydir untouched and recovery
// replaying the log will discard the half-written sequence.
func (b *Batch) Commit() error {
	if b.committed {
		return stdErrors.New("batch: already committed")
	}
	if len(b.order) == 0 {
		return errors.NewEngineError(errors.ErrEmptyBatch, errors.ErrorCodeEmptyBatch, "batch has no buffered operations to commit").
			WithOperation("Batch.Commit")
	}
	if err := b.checkSize(); err != nil {
		return err
	}

	seq := b.w.NextTxnSeq()

	type applied struct {
		key       []byte
		loc       index.Location
		tombstone bool
	}
	results := make([]applied, 0, len(b.order))

	for _, k := range b.order {
		o := b.pending[k]

		recType := codec.RecordNormal
		value := o.value
		if o.tombstone {
			recType = codec.RecordTombstone
			value = nil
		}

		rec := codec.Record{Type: recType, Key: codec.EncodeSeqKey(seq, o.key), Value: value}
		loc, err := b.w.AppendRecord(rec)
		if err != nil {
			return err
		}

		results = append(results, applied{key: o.key, loc: loc, tombstone: o.tombstone})
	}

	marker := codec.Record{Type: codec.RecordTxnFinished, Key: codec.EncodeSeqKey(seq, nil)}
	if _, err := b.w.AppendRecord(marker); err != nil {
		return err
	}

	if b.syncOnCommit {
		if err := b.w.SyncActive(); err != nil {
			return err
		}
	}

	for _, a := range results {
		b.w.ApplyLocation(a.key, a.loc, a.tombstone)
	}

	if err := b.w.PersistTxnSeq(seq); err != nil {
		return err
	}

	b.committed = true
	return nil
}

// Len reports how many distinct keys are currently buffered.
func (b *Batch) Len() int {
	return len(b.order)
}
