// Package merge implements Ignite's compaction pass: copy every record
// still reachable from the keydir out of a set of immutable data files
// into a sibling merge directory and emit a hint file alongside it. The
// merged files then replace only the candidate files, whose ids lie below
// the merge boundary; files at or above it are left untouched. Records a
// key's keydir entry no longer
// points at - superseded writes, tombstones, and whatever an aborted
// write batch left behind - are simply never copied.
package merge

import (
	"io"
	"path/filepath"

	"github.com/iamNilotpal/ignite/internal/codec"
	"github.com/iamNilotpal/ignite/internal/datafile"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/internal/recovery"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/filesys"
	"go.uber.org/zap"
)

// Lookup resolves a key's current keydir entry, letting Run tell a live
// record apart from a stale one without needing write access to the
// live index.
type Lookup func(key []byte) (index.Location, bool)

// OpenFile opens one of the immutable candidate files for scanning.
type OpenFile func(id uint32) (*datafile.File, error)

// Run copies every live record in candidateIDs (read through openFile)
// into a fresh sibling directory, writes a hint file and a finished
// marker encoding mergeBoundary, then applies the result to dataDir:
// every file with id < mergeBoundary is replaced by the merge output,
// and every file with id >= mergeBoundary - the file the engine rotated
// to at the start of this merge, and anything written or rotated since
// - is left untouched. out is populated with every surviving (key,
// location) pair, in the applied output's coordinates, and is what the
// caller folds into its keydir. It returns the ascending file ids the
// merge produced.
func Run(
	dataDir string,
	candidateIDs []uint32,
	openFile OpenFile,
	lookup Lookup,
	maxFileSize uint64,
	out index.Index,
	mergeBoundary uint32,
	log *zap.SugaredLogger,
) ([]uint32, error) {
	mergeDir := dataDir + ".merge"
	if err := filesys.DeleteDir(mergeDir); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to clear stale merge directory").WithPath(mergeDir)
	}
	if err := filesys.CreateDir(mergeDir, 0755, true); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to create merge directory").WithPath(mergeDir)
	}

	w, err := newWriter(mergeDir, maxFileSize, log)
	if err != nil {
		return nil, err
	}

	for _, id := range candidateIDs {
		if err := copyLive(id, openFile, lookup, w, out); err != nil {
			w.close()
			return nil, err
		}
	}
	if err := w.close(); err != nil {
		return nil, err
	}

	hintPath := filepath.Join(mergeDir, recovery.HintFileName)
	if err := recovery.WriteHintFile(hintPath, out); err != nil {
		return nil, err
	}

	if err := recovery.WriteMergeFinishedMarker(mergeDir, mergeBoundary); err != nil {
		return nil, err
	}

	return recovery.ApplyMerge(dataDir, mergeDir, mergeBoundary, log)
}

// copyLive scans file id, emitting every record whose keydir lookup
// still resolves to exactly that file/offset.
func copyLive(id uint32, openFile OpenFile, lookup Lookup, w *writer, out index.Index) error {
	f, err := openFile(id)
	if err != nil {
		return err
	}

	var offset int64
	size := f.Size()

	for offset < size {
		headerBuf, rerr := f.ReadAt(offset, min(codec.MaxHeaderSize, int(size-offset)))
		if rerr != nil {
			break
		}

		header, herr := codec.DecodeHeader(headerBuf)
		if herr == io.EOF || herr == io.ErrUnexpectedEOF {
			break
		}
		if herr != nil {
			return errors.NewStorageError(herr, errors.ErrorCodeSegmentCorrupted, "corrupt record header during merge").
				WithFileName(filepath.Base(f.Path())).
				WithOffset(int(offset))
		}

		payloadLen := header.PayloadSize()
		if offset+int64(header.Size)+int64(payloadLen) > size {
			break
		}

		payload, rerr := f.ReadAt(offset+int64(header.Size), payloadLen)
		if rerr != nil {
			break
		}

		rec, derr := codec.DecodePayload(headerBuf[:header.Size], header, payload)
		if derr != nil {
			break
		}

		recordSize := int64(header.Size) + int64(payloadLen)

		if rec.Type == codec.RecordNormal {
			_, userKey, derr := codec.DecodeSeqKey(rec.Key)
			if derr == nil {
				current, ok := lookup(userKey)
				live := ok && current.FileID == id && current.Offset == uint64(offset) && current.RecordSize == uint64(recordSize)
				if live {
					fresh := codec.Record{Type: codec.RecordNormal, Key: codec.EncodeSeqKey(0, userKey), Value: rec.Value}
					loc, err := w.append(fresh)
					if err != nil {
						return err
					}
					out.Put(userKey, loc)
				}
			}
		}

		offset += recordSize
	}

	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// writer appends merge output across one or more rotated data files
// under maxFileSize, independent of the live engine's iomanager.
type writer struct {
	dir         string
	maxFileSize uint64
	log         *zap.SugaredLogger

	id     uint32
	active *datafile.File
	ids    []uint32
}

func newWriter(dir string, maxFileSize uint64, log *zap.SugaredLogger) (*writer, error) {
	f, err := datafile.Open(dir, 1, datafile.Standard, log)
	if err != nil {
		return nil, err
	}
	return &writer{dir: dir, maxFileSize: maxFileSize, log: log, id: 1, active: f, ids: []uint32{1}}, nil
}

func (w *writer) append(rec codec.Record) (index.Location, error) {
	data := codec.Encode(rec)

	if w.active.Size() > 0 && uint64(w.active.Size())+uint64(len(data)) > w.maxFileSize {
		if err := w.active.Close(); err != nil {
			return index.Location{}, err
		}
		w.id++
		f, err := datafile.Open(w.dir, w.id, datafile.Standard, w.log)
		if err != nil {
			return index.Location{}, err
		}
		w.active = f
		w.ids = append(w.ids, w.id)
	}

	offset, err := w.active.Append(data)
	if err != nil {
		return index.Location{}, err
	}

	return index.Location{FileID: w.id, Offset: uint64(offset), RecordSize: uint64(len(data))}, nil
}

func (w *writer) close() error {
	if w.active == nil {
		return nil
	}
	if err := w.active.Sync(); err != nil {
		return err
	}
	return w.active.Close()
}
