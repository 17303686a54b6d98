package codec

import "encoding/binary"

// EncodeSeqKey prefixes key with the varint-encoded transaction sequence
// every record in a write batch carries on disk. A non-transactional
// write uses sequence 0, which recovery and merge treat as "not part of
// a batch" rather than reserving it for anything special.
func EncodeSeqKey(seq uint64, key []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+len(key))
	n := binary.PutUvarint(buf, seq)
	n += copy(buf[n:], key)
	return buf[:n]
}

// DecodeSeqKey splits a sequence-prefixed on-disk key back into the
// sequence number and the original user key.
func DecodeSeqKey(data []byte) (seq uint64, key []byte, err error) {
	seq, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, ErrCorruptHeader
	}
	return seq, data[n:], nil
}
