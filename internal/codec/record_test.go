package codec

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	rec := Record{Type: RecordNormal, Key: []byte("hello"), Value: []byte("world")}
	buf := Encode(rec)
	require.Len(t, buf, EncodedLength(rec))

	header, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, RecordNormal, header.Type)
	assert.Equal(t, uint64(len(rec.Key)), header.KeySize)
	assert.Equal(t, uint64(len(rec.Value)), header.ValueSize)

	payload := buf[header.Size:]
	got, err := DecodePayload(buf[:header.Size], header, payload)
	require.NoError(t, err)
	assert.Equal(t, rec.Type, got.Type)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Value, got.Value)
}

func TestEncodeDecode_EmptyValue(t *testing.T) {
	rec := Record{Type: RecordTombstone, Key: []byte("k"), Value: nil}
	buf := Encode(rec)

	header, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), header.ValueSize)

	got, err := DecodePayload(buf[:header.Size], header, buf[header.Size:])
	require.NoError(t, err)
	assert.Equal(t, RecordTombstone, got.Type)
	assert.Empty(t, got.Value)
}

func TestDecodeHeader_TruncatedTailIsBenign(t *testing.T) {
	rec := Record{Type: RecordNormal, Key: []byte("k"), Value: []byte("v")}
	buf := Encode(rec)

	_, err := DecodeHeader(buf[:0])
	assert.ErrorIs(t, err, io.EOF)

	_, err = DecodeHeader(buf[:1])
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeHeader_UnknownTypeIsCorrupt(t *testing.T) {
	rec := Record{Type: RecordNormal, Key: []byte("k"), Value: []byte("v")}
	buf := Encode(rec)
	buf[0] = 0xFF

	_, err := DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestDecodePayload_CRCMismatch(t *testing.T) {
	rec := Record{Type: RecordNormal, Key: []byte("k"), Value: []byte("v")}
	buf := Encode(rec)
	buf[len(buf)-1] ^= 0xFF

	header, err := DecodeHeader(buf)
	require.NoError(t, err)

	_, err = DecodePayload(buf[:header.Size], header, buf[header.Size:])
	assert.ErrorIs(t, err, ErrInvalidCRC)
}

func TestSeqKey_Roundtrip(t *testing.T) {
	key := []byte("user:42")
	encoded := EncodeSeqKey(7, key)

	seq, gotKey, err := DecodeSeqKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)
	assert.Equal(t, key, gotKey)
}

func TestSeqKey_EmptyKey(t *testing.T) {
	encoded := EncodeSeqKey(99, nil)
	seq, gotKey, err := DecodeSeqKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), seq)
	assert.Empty(t, gotKey)
}
