package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ordkv/ordkv/internal/kverrors"
)

// encodeFrame serializes r into a self-contained frame:
//
//	[frame_len:uvarint][type:u8][seq:uvarint][key_len:uvarint][key][value_len:uvarint][value][crc32:4]
//
// frame_len covers everything between it and the crc32 trailer.
func encodeFrame(r Record) []byte {
	body := make([]byte, 0, 1+binary.MaxVarintLen64+len(r.Key)+binary.MaxVarintLen64+len(r.Value))
	body = append(body, byte(r.Op))
	var seqBuf [binary.MaxVarintLen64]byte
	sn := binary.PutUvarint(seqBuf[:], r.Seq)
	body = append(body, seqBuf[:sn]...)
	body = appendUvarintBytes(body, r.Key)
	if r.Op != OpTypeDel {
		body = appendUvarintBytes(body, r.Value)
	}

	out := make([]byte, 0, binary.MaxVarintLen64+len(body)+4)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(body)))
	out = append(out, lenBuf[:n]...)
	out = append(out, body...)

	crc := crc32.ChecksumIEEE(body)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)
	return out
}

func appendUvarintBytes(dst []byte, b []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	dst = append(dst, lenBuf[:n]...)
	return append(dst, b...)
}

// decodeBody parses a verified frame body (without length prefix or crc)
// back into a Record.
func decodeBody(body []byte) (Record, error) {
	if len(body) < 1 {
		return Record{}, kverrors.ErrWALCorrupt
	}
	op := OpType(body[0])
	rest := body[1:]

	seq, n := binary.Uvarint(rest)
	if n <= 0 {
		return Record{}, kverrors.ErrWALCorrupt
	}
	rest = rest[n:]

	key, rest, err := readUvarintBytes(rest)
	if err != nil {
		return Record{}, err
	}

	r := Record{Op: op, Seq: seq, Key: key}
	if op != OpTypeDel {
		value, _, err := readUvarintBytes(rest)
		if err != nil {
			return Record{}, err
		}
		r.Value = value
	}
	return r, nil
}

func readUvarintBytes(b []byte) (value, rest []byte, err error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, nil, kverrors.ErrWALCorrupt
	}
	b = b[k:]
	if uint64(len(b)) < n {
		return nil, nil, kverrors.ErrWALCorrupt
	}
	return b[:n], b[n:], nil
}
