package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Reader replays WAL records across segments in append order.
type Reader struct {
	dir  string
	segs []int
	pos  int

	f *os.File
	r *bufio.Reader
}

// NewReader opens a reader over every segment currently in dir.
func NewReader(dir string) (*Reader, error) {
	segs, err := ListSegments(dir)
	if err != nil {
		return nil, err
	}
	rd := &Reader{dir: dir, segs: segs}
	if len(segs) > 0 {
		if err := rd.openSegment(segs[0]); err != nil {
			return nil, err
		}
	}
	return rd, nil
}

func (rd *Reader) openSegment(idx int) error {
	if rd.f != nil {
		rd.f.Close()
	}
	f, err := os.Open(SegmentPath(rd.dir, idx))
	if err != nil {
		return fmt.Errorf("wal: open segment for replay: %w", err)
	}
	rd.f = f
	rd.r = bufio.NewReader(f)
	return nil
}

// Read returns the next record, or io.EOF once every segment is
// exhausted. A partially written trailing record (length prefix present
// but body/crc incomplete, or a CRC mismatch on the last frame of the
// active segment) ends replay for that segment silently, as if EOF had
// been reached there.
func (rd *Reader) Read() (Record, error) {
	for {
		if rd.f == nil {
			return Record{}, io.EOF
		}

		rec, err := rd.readOneFrame()
		if err == io.EOF || err == io.ErrUnexpectedEOF || err == errFrameCorrupt {
			rd.pos++
			if rd.pos >= len(rd.segs) {
				rd.f.Close()
				rd.f = nil
				return Record{}, io.EOF
			}
			if oerr := rd.openSegment(rd.segs[rd.pos]); oerr != nil {
				return Record{}, oerr
			}
			continue
		}
		if err != nil {
			return Record{}, err
		}
		return rec, nil
	}
}

var errFrameCorrupt = fmt.Errorf("wal: frame corrupt")

func (rd *Reader) readOneFrame() (Record, error) {
	return readFrame(rd.r)
}

// readFrame decodes one frame from r, the shared primitive behind
// Reader.Read and segment-local scans (e.g. ScanSegmentMaxSeqs).
func readFrame(r *bufio.Reader) (Record, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return Record{}, io.EOF
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	want := binary.BigEndian.Uint32(crcBuf[:])
	got := crc32.ChecksumIEEE(body)
	if got != want {
		return Record{}, errFrameCorrupt
	}

	rec, err := decodeBody(body)
	if err != nil {
		return Record{}, errFrameCorrupt
	}
	return rec, nil
}

// ScanSegmentMaxSeqs reads every segment in dir independently (stopping
// each at its first corrupt or partial frame, same tolerance as Read)
// and returns the highest seq found in each, keyed by segment index.
// Used to decide which segments a flush has made redundant.
func ScanSegmentMaxSeqs(dir string) (map[int]uint64, error) {
	segs, err := ListSegments(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[int]uint64, len(segs))
	for _, idx := range segs {
		f, err := os.Open(SegmentPath(dir, idx))
		if err != nil {
			return nil, fmt.Errorf("wal: open segment for scan: %w", err)
		}
		br := bufio.NewReader(f)
		var maxSeq uint64
		for {
			rec, err := readFrame(br)
			if err != nil {
				break
			}
			if rec.Seq > maxSeq {
				maxSeq = rec.Seq
			}
		}
		f.Close()
		out[idx] = maxSeq
	}
	return out, nil
}

// Close releases the reader's open segment file, if any.
func (rd *Reader) Close() error {
	if rd.f != nil {
		return rd.f.Close()
	}
	return nil
}

// Replay reads every record across all segments, invoking onPut/onDel in
// append order with each record's original seq, per spec.md §4.1.
func Replay(dir string, onPut func(key, value []byte, seq uint64), onDel func(key []byte, seq uint64)) error {
	rd, err := NewReader(dir)
	if err != nil {
		return err
	}
	defer rd.Close()

	for {
		rec, err := rd.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch rec.Op {
		case OpTypePut:
			onPut(rec.Key, rec.Value, rec.Seq)
		case OpTypeDel:
			onDel(rec.Key, rec.Seq)
		}
	}
}
