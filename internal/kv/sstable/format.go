package sstable

import (
	"encoding/binary"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
	"github.com/ordkv/ordkv/internal/kverrors"
)

// Magic identifies the footer format version.
const Magic uint64 = 0x6f72646b76731001 // "ordkvs" v1

const footerSize = 8 + 8 + 8 // index_offset + bloom_offset + magic

type footer struct {
	indexOffset uint64
	bloomOffset uint64
	magic       uint64
}

func encodeFooter(f footer) []byte {
	buf := make([]byte, footerSize)
	binary.BigEndian.PutUint64(buf[0:8], f.indexOffset)
	binary.BigEndian.PutUint64(buf[8:16], f.bloomOffset)
	binary.BigEndian.PutUint64(buf[16:24], f.magic)
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerSize {
		return footer{}, kverrors.ErrSSTChecksum
	}
	f := footer{
		indexOffset: binary.BigEndian.Uint64(buf[0:8]),
		bloomOffset: binary.BigEndian.Uint64(buf[8:16]),
		magic:       binary.BigEndian.Uint64(buf[16:24]),
	}
	if f.magic != Magic {
		return footer{}, kverrors.ErrSSTChecksum
	}
	return f, nil
}

// encodeRecord serializes one InternalKey/value pair for a data block.
func encodeRecord(key internalkey.Key, value []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(key.UserKey)+9+binary.MaxVarintLen64+len(value))
	out = appendUvarintBytes(out, key.UserKey)
	var seqKind [9]byte
	binary.BigEndian.PutUint64(seqKind[:8], key.Seq)
	seqKind[8] = byte(key.Kind)
	out = append(out, seqKind[:]...)
	out = appendUvarintBytes(out, value)
	return out
}

// decodeRecord reads one record from buf, returning the number of bytes
// consumed.
func decodeRecord(buf []byte) (internalkey.Key, []byte, int, error) {
	userKey, rest, n1, err := readUvarintBytes(buf)
	if err != nil {
		return internalkey.Key{}, nil, 0, err
	}
	if len(rest) < 9 {
		return internalkey.Key{}, nil, 0, kverrors.ErrSSTChecksum
	}
	seq := binary.BigEndian.Uint64(rest[:8])
	kind := internalkey.Kind(rest[8])
	rest = rest[9:]

	value, _, n2, err := readUvarintBytes(rest)
	if err != nil {
		return internalkey.Key{}, nil, 0, err
	}

	consumed := n1 + 9 + n2
	return internalkey.Key{UserKey: userKey, Seq: seq, Kind: kind}, value, consumed, nil
}

func appendUvarintBytes(dst, b []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	dst = append(dst, lenBuf[:n]...)
	return append(dst, b...)
}

func readUvarintBytes(b []byte) (value, rest []byte, consumed int, err error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, nil, 0, kverrors.ErrSSTChecksum
	}
	b = b[k:]
	if uint64(len(b)) < n {
		return nil, nil, 0, kverrors.ErrSSTChecksum
	}
	return b[:n], b[n:], k + int(n), nil
}

// indexEntry is one entry of the sparse block index: first key of the
// block and its location within the file.
type indexEntry struct {
	firstKey internalkey.Key
	offset   uint64
	length   uint32
}

func encodeIndexEntry(e indexEntry) []byte {
	out := appendUvarintBytes(nil, e.firstKey.UserKey)
	var rest [9 + 8 + 4]byte
	binary.BigEndian.PutUint64(rest[0:8], e.firstKey.Seq)
	rest[8] = byte(e.firstKey.Kind)
	binary.BigEndian.PutUint64(rest[9:17], e.offset)
	binary.BigEndian.PutUint32(rest[17:21], e.length)
	return append(out, rest[:]...)
}

func decodeIndexEntry(buf []byte) (indexEntry, int, error) {
	userKey, rest, n1, err := readUvarintBytes(buf)
	if err != nil {
		return indexEntry{}, 0, err
	}
	if len(rest) < 21 {
		return indexEntry{}, 0, kverrors.ErrSSTChecksum
	}
	seq := binary.BigEndian.Uint64(rest[0:8])
	kind := internalkey.Kind(rest[8])
	offset := binary.BigEndian.Uint64(rest[9:17])
	length := binary.BigEndian.Uint32(rest[17:21])
	return indexEntry{
		firstKey: internalkey.Key{UserKey: userKey, Seq: seq, Kind: kind},
		offset:   offset,
		length:   length,
	}, n1 + 21, nil
}
