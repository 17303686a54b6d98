// Package recovery rebuilds a keydir from the data files left in a
// directory when an Engine opens: hint files for any file merge already
// compacted, and a sequential record scan for everything else, including
// whatever partial write a crash left at the tail of the active file.
package recovery

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/iamNilotpal/ignite/internal/codec"
	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/filesys"
	"github.com/iamNilotpal/ignite/pkg/seginfo"
	"go.uber.org/zap"
)

// HintFileName is the per-directory file merge writes listing, for every
// key still live after a merge, the (fileID, offset, size) it lives at.
const HintFileName = "ignite.hint"

// MergeFinishedFileName marks that a merge directory finished copying
// every live record and may be applied to the main data directory. Its
// content is a varint encoding the merge boundary: every file id below
// it is a candidate the merge already accounted for.
const MergeFinishedFileName = "ignite.merge-finished"

// MergeBoundaryFileName persists, in the main data directory, the
// boundary of the most recently applied merge, so a later Scan knows
// which file ids the hint file covers and which still need a full
// sequential scan (anything written after that merge started).
const MergeBoundaryFileName = "ignite.merge-boundary"

// SeqCounterFileName persists the highest write-batch transaction
// sequence observed, so a restarted engine never reuses one.
const SeqCounterFileName = "ignite.seq"

// Result is everything Open needs after recovery completes.
type Result struct {
	Index        index.Index
	FileIDs      []uint32 // every data file id present, ascending
	ActiveFileID uint32
	TxnSeq       uint64 // highest transaction sequence already consumed
}

// Scan walks dataDir, reconciling any unfinished merge, loading the hint
// file fast path when present, and sequentially scanning whatever it
// does not cover, populating idx and returning the file id set and the
// transaction sequence counter to resume from.
func Scan(dataDir string, idx index.Index, mmapStartup bool, log *zap.SugaredLogger) (Result, error) {
	if err := reconcileMerge(dataDir, log); err != nil {
		return Result{}, err
	}

	ids, err := seginfo.ListFileIDs(dataDir)
	if err != nil {
		return Result{}, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list data files").WithPath(dataDir)
	}

	result := Result{Index: idx, FileIDs: ids}

	if len(ids) == 0 {
		result.ActiveFileID = 0
		result.TxnSeq = loadSeqCounter(dataDir, log)
		return result, nil
	}
	result.ActiveFileID = ids[len(ids)-1]

	hintedUpTo, err := loadHintFile(dataDir, idx, log)
	if err != nil {
		return Result{}, err
	}
	boundary, hasBoundary := loadMergeBoundary(dataDir, log)

	maxSeq := uint64(0)
	for _, id := range ids {
		// Only file ids the hint file was actually written to cover (below
		// the recorded merge boundary) can skip the sequential scan; any id
		// at or above it, including the active file, was never touched by
		// the merge that produced the hint and must be scanned directly.
		if hintedUpTo && hasBoundary && id < boundary {
			continue
		}

		mode := datafile.Standard
		if mmapStartup {
			mode = datafile.MemoryMapped
		}

		f, err := datafile.Open(dataDir, id, mode, log)
		if err != nil {
			return Result{}, err
		}

		seq, goodOffset, err := scanFile(f, id, idx)
		if err != nil {
			f.Close()
			return Result{}, err
		}
		if seq > maxSeq {
			maxSeq = seq
		}

		// A torn tail write leaves garbage bytes past the last good record.
		// Shrink the file's logical size back to that record now, while the
		// file is open, so the next Append lands over the garbage instead
		// of leaving a permanent unreadable gap that every future recovery
		// would stop scanning at.
		if origSize := f.Size(); goodOffset < origSize {
			if f.Mode() != datafile.Standard {
				if err := f.DowngradeToStandard(); err != nil {
					f.Close()
					return Result{}, err
				}
			}
			if err := f.Truncate(goodOffset); err != nil {
				f.Close()
				return Result{}, err
			}
			log.Warnw("truncated torn tail write", "fileID", id, "from", origSize, "to", goodOffset)
		}

		f.Close()
	}

	persisted := loadSeqCounter(dataDir, log)
	if persisted > maxSeq {
		maxSeq = persisted
	}
	result.TxnSeq = maxSeq

	return result, nil
}

// pendingOp is a buffered mutation awaiting its TxnFinished marker.
type pendingOp struct {
	key       []byte
	tombstone bool
	loc       index.Location
}

// scanFile sequentially reads every record in f, stripping the sequence
// prefix each on-disk key carries. Non-transactional writes use sequence
// 0 and apply to the index immediately; writes buffered under a nonzero
// sequence only apply once that sequence's TxnFinished record appears,
// matching the write-batch commit contract. A header or CRC failure at
// the very tail of the file is treated as a torn write from an
// in-flight append and stops the scan without returning an error; the
// same failure anywhere else is corruption. goodOffset is the length the
// file should be truncated to: the byte position immediately after the
// last fully-decoded record.
func scanFile(f *datafile.File, fileID uint32, idx index.Index) (maxSeq uint64, goodOffset int64, err error) {
	pending := make(map[uint64][]pendingOp)

	var offset int64
	size := f.Size()

	for offset < size {
		headerBuf, rerr := f.ReadAt(offset, min64(codec.MaxHeaderSize, int(size-offset)))
		if rerr != nil {
			return maxSeq, offset, nil // short read at tail: torn write, stop cleanly
		}

		header, herr := codec.DecodeHeader(headerBuf)
		if herr == io.EOF || herr == io.ErrUnexpectedEOF {
			return maxSeq, offset, nil
		}
		if herr != nil {
			return maxSeq, offset, errors.NewStorageError(herr, errors.ErrorCodeSegmentCorrupted, "corrupt record header").
				WithFileName(filepath.Base(f.Path())).
				WithOffset(int(offset))
		}

		payloadLen := header.PayloadSize()
		if offset+int64(header.Size)+int64(payloadLen) > size {
			return maxSeq, offset, nil // torn tail write: header present, payload truncated
		}

		payload, rerr := f.ReadAt(offset+int64(header.Size), payloadLen)
		if rerr != nil {
			return maxSeq, offset, nil
		}

		rec, derr := codec.DecodePayload(headerBuf[:header.Size], header, payload)
		if derr != nil {
			if derr == codec.ErrInvalidCRC && offset+int64(header.Size)+int64(payloadLen) == size {
				return maxSeq, offset, nil // torn tail write with a half-flushed checksum
			}
			return maxSeq, offset, errors.NewStorageError(derr, errors.ErrorCodeSegmentCorrupted, "corrupt record payload").
				WithFileName(filepath.Base(f.Path())).
				WithOffset(int(offset))
		}

		recordSize := int64(header.Size) + int64(payloadLen)

		if rec.Type == codec.RecordTxnFinished {
			seq, _, derr := codec.DecodeSeqKey(rec.Key)
			if derr == nil {
				for _, op := range pending[seq] {
					if op.tombstone {
						idx.Delete(op.key)
					} else {
						idx.Put(op.key, op.loc)
					}
				}
				delete(pending, seq)
				if seq > maxSeq {
					maxSeq = seq
				}
			}
			offset += recordSize
			continue
		}

		seq, userKey, derr := codec.DecodeSeqKey(rec.Key)
		if derr != nil {
			offset += recordSize
			continue
		}

		op := pendingOp{
			key:       append([]byte(nil), userKey...),
			tombstone: rec.Type == codec.RecordTombstone,
			loc:       index.Location{FileID: fileID, Offset: uint64(offset), RecordSize: uint64(recordSize)},
		}

		if seq == 0 {
			if op.tombstone {
				idx.Delete(op.key)
			} else {
				idx.Put(op.key, op.loc)
			}
		} else {
			pending[seq] = append(pending[seq], op)
		}

		offset += recordSize
	}

	return maxSeq, offset, nil
}

func min64(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// loadHintFile applies every (key, location) pair recorded in dataDir's
// hint file, if one exists, to idx. It returns true when a hint file was
// found; Scan then skips the sequential scan only for files whose ids lie
// below the persisted merge boundary.
func loadHintFile(dataDir string, idx index.Index, log *zap.SugaredLogger) (bool, error) {
	path := filepath.Join(dataDir, HintFileName)
	if exists, _ := filesys.Exists(path); !exists {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to read hint file").WithPath(path)
	}

	for len(data) > 0 {
		keyLen, n := binary.Uvarint(data)
		if n <= 0 {
			return false, errors.NewStorageError(nil, errors.ErrorCodeSegmentCorrupted, "corrupt hint file").WithPath(path)
		}
		data = data[n:]

		if uint64(len(data)) < keyLen {
			return false, errors.NewStorageError(nil, errors.ErrorCodeSegmentCorrupted, "truncated hint file").WithPath(path)
		}
		key := append([]byte(nil), data[:keyLen]...)
		data = data[keyLen:]

		locLen, n := binary.Uvarint(data)
		if n <= 0 {
			return false, errors.NewStorageError(nil, errors.ErrorCodeSegmentCorrupted, "corrupt hint file").WithPath(path)
		}
		data = data[n:]

		if uint64(len(data)) < locLen {
			return false, errors.NewStorageError(nil, errors.ErrorCodeSegmentCorrupted, "truncated hint file").WithPath(path)
		}
		loc, derr := index.DecodeLocation(data[:locLen])
		if derr != nil {
			return false, errors.NewStorageError(derr, errors.ErrorCodeSegmentCorrupted, "corrupt hint entry").WithPath(path)
		}
		data = data[locLen:]

		idx.Put(key, loc)
	}

	log.Infow("loaded keydir from hint file", "path", path)
	return true, nil
}

// WriteHintFile serializes every entry in idx as (varint keylen, key,
// varint loclen, location) tuples. Used by merge once it finishes
// copying every live record into a fresh directory.
func WriteHintFile(path string, idx index.Index) error {
	var buf []byte
	for _, entry := range idx.Snapshot(false) {
		locBytes := index.EncodeLocation(entry.Location)

		kHdr := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(kHdr, uint64(len(entry.Key)))
		buf = append(buf, kHdr[:n]...)
		buf = append(buf, entry.Key...)

		lHdr := make([]byte, binary.MaxVarintLen64)
		n = binary.PutUvarint(lHdr, uint64(len(locBytes)))
		buf = append(buf, lHdr[:n]...)
		buf = append(buf, locBytes...)
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write hint file").WithPath(path)
	}
	return nil
}

// reconcileMerge finishes an interrupted merge: if a merge directory
// exists and carries MergeFinishedFileName, it completed copying but
// crashed before (or during) being applied to the main directory, so
// applying it is retried using the boundary the marker encodes; if it
// exists without the marker, it is a stale, incomplete attempt and is
// discarded.
func reconcileMerge(dataDir string, log *zap.SugaredLogger) error {
	mergeDir := dataDir + ".merge"
	if exists, _ := filesys.Exists(mergeDir); !exists {
		return nil
	}

	boundary, ok, err := readMergeFinishedMarker(mergeDir)
	if err != nil {
		return err
	}
	if ok {
		log.Infow("resuming interrupted merge", "mergeDir", mergeDir, "boundary", boundary)
		_, err := ApplyMerge(dataDir, mergeDir, boundary, log)
		return err
	}

	log.Infow("discarding incomplete merge directory", "mergeDir", mergeDir)
	return filesys.DeleteDir(mergeDir)
}

// WriteMergeFinishedMarker records, in mergeDir, that the merge which
// produced it finished copying every live record and is ready to be
// applied, along with the merge boundary the copy was computed against.
func WriteMergeFinishedMarker(mergeDir string, boundary uint32) error {
	path := filepath.Join(mergeDir, MergeFinishedFileName)
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(boundary))
	if err := os.WriteFile(path, buf[:n], 0644); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write merge-finished marker").WithPath(path)
	}
	return nil
}

// readMergeFinishedMarker reads the merge boundary MergeFinishedFileName
// encodes, reporting ok=false if mergeDir carries no marker at all.
func readMergeFinishedMarker(mergeDir string) (boundary uint32, ok bool, err error) {
	path := filepath.Join(mergeDir, MergeFinishedFileName)
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		if os.IsNotExist(rerr) {
			return 0, false, nil
		}
		return 0, false, errors.NewStorageError(rerr, errors.ErrorCodeIO, "failed to read merge-finished marker").WithPath(path)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, false, errors.NewStorageError(nil, errors.ErrorCodeSegmentCorrupted, "corrupt merge-finished marker").WithPath(path)
	}
	return uint32(v), true, nil
}

// ApplyMerge replaces only the files with id < boundary in dataDir with
// mergeDir's output files, moves the hint file into place, persists the
// boundary so a later Scan knows how much of the directory the hint
// file covers, and removes mergeDir. Unlike swapping the whole
// directory, this never touches a file with id >= boundary: the active
// file rotated at the start of the merge, and anything written or
// rotated after that, are left exactly as they are on disk. It returns
// the ascending file ids the merge produced, now present in dataDir.
func ApplyMerge(dataDir, mergeDir string, boundary uint32, log *zap.SugaredLogger) ([]uint32, error) {
	mergedIDs, err := seginfo.ListFileIDs(mergeDir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list merged data files").WithPath(mergeDir)
	}

	existingIDs, err := seginfo.ListFileIDs(dataDir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list data files").WithPath(dataDir)
	}
	for _, id := range existingIDs {
		if id >= boundary {
			continue
		}
		path := filepath.Join(dataDir, seginfo.GenerateName(id))
		if err := filesys.DeleteFile(path); err != nil {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove superseded data file").WithPath(path)
		}
	}

	for _, id := range mergedIDs {
		src := filepath.Join(mergeDir, seginfo.GenerateName(id))
		dst := filepath.Join(dataDir, seginfo.GenerateName(id))
		if err := os.Rename(src, dst); err != nil {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to move merged data file into place").WithPath(dst)
		}
	}

	hintSrc := filepath.Join(mergeDir, HintFileName)
	if exists, _ := filesys.Exists(hintSrc); exists {
		hintDst := filepath.Join(dataDir, HintFileName)
		if err := filesys.DeleteFile(hintDst); err != nil && !os.IsNotExist(err) {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove stale hint file").WithPath(hintDst)
		}
		if err := os.Rename(hintSrc, hintDst); err != nil {
			return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to move hint file into place").WithPath(hintDst)
		}
	}

	if err := persistMergeBoundary(dataDir, boundary); err != nil {
		return nil, err
	}

	if err := filesys.DeleteDir(mergeDir); err != nil {
		log.Warnw("failed to remove merge directory after applying merge", "path", mergeDir, "error", err)
	}

	log.Infow("applied merge", "boundary", boundary, "mergedFiles", mergedIDs)
	return mergedIDs, nil
}

// persistMergeBoundary records, in dataDir, the boundary of the most
// recently applied merge.
func persistMergeBoundary(dataDir string, boundary uint32) error {
	path := filepath.Join(dataDir, MergeBoundaryFileName)
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(boundary))
	if err := os.WriteFile(path, buf[:n], 0644); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to persist merge boundary").WithPath(path)
	}
	return nil
}

// loadMergeBoundary reads the boundary persisted by the most recent
// ApplyMerge, reporting ok=false if dataDir has never had a merge
// applied to it.
func loadMergeBoundary(dataDir string, log *zap.SugaredLogger) (boundary uint32, ok bool) {
	path := filepath.Join(dataDir, MergeBoundaryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, n := binary.Uvarint(data)
	if n <= 0 {
		log.Warnw("ignoring corrupt merge boundary file", "path", path)
		return 0, false
	}
	return uint32(v), true
}

// loadSeqCounter reads the persisted transaction sequence counter, or 0
// if this directory has never committed a write batch.
func loadSeqCounter(dataDir string, log *zap.SugaredLogger) uint64 {
	path := filepath.Join(dataDir, SeqCounterFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	seq, n := binary.Uvarint(data)
	if n <= 0 {
		log.Warnw("ignoring corrupt sequence counter file", "path", path)
		return 0
	}
	return seq
}

// PersistSeqCounter writes the highest consumed transaction sequence to
// dataDir so it survives a restart.
func PersistSeqCounter(dataDir string, seq uint64) error {
	path := filepath.Join(dataDir, SeqCounterFileName)
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, seq)
	if err := os.WriteFile(path, buf[:n], 0644); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to persist sequence counter").WithPath(path)
	}
	return nil
}
