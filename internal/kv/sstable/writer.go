package sstable

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
)

// DefaultBlockSize is the target uncompressed size of one data block.
const DefaultBlockSize = 4 << 10

// Meta describes one SST file's identity, key range, and seq range (§3
// Data Model). MaxSeq lets the engine resume its global sequence
// counter across restarts without replaying every flushed WAL segment.
type Meta struct {
	FileID   uint64
	Filename string
	MinKey   []byte
	MaxKey   []byte
	MaxSeq   uint64
	Size     int64
}

// Writer builds one SST file from an ordered stream of InternalKeys.
type Writer struct {
	path        string
	f           *os.File
	blockSize   int
	compress    bool
	enc         *zstd.Encoder

	curBlock    []byte
	curFirstKey *internalkey.Key
	blockCount  int

	index []indexEntry
	bloom *bloomFilter

	minKey, maxKey []byte
	maxSeq         uint64
	offset         uint64
	numKeys        int
}

// NewWriter creates a writer targeting path, estimating numKeys for the
// bloom filter sizing.
func NewWriter(path string, numKeys int, compress bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: create: %w", err)
	}
	w := &Writer{
		path:      path,
		f:         f,
		blockSize: DefaultBlockSize,
		compress:  compress,
		bloom:     newBloomFilter(numKeys),
	}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sstable: zstd writer: %w", err)
		}
		w.enc = enc
	}
	return w, nil
}

// Add appends one InternalKey/value pair. Keys must arrive in ascending
// user_key / descending seq order (the merge iterator's output order).
func (w *Writer) Add(key internalkey.Key, value []byte) error {
	if w.minKey == nil {
		w.minKey = append([]byte(nil), key.UserKey...)
	}
	w.maxKey = append([]byte(nil), key.UserKey...)
	w.numKeys++
	if key.Seq > w.maxSeq {
		w.maxSeq = key.Seq
	}

	w.bloom.add(key.UserKey)

	if w.curFirstKey == nil {
		k := key
		w.curFirstKey = &k
	}
	w.curBlock = append(w.curBlock, encodeRecord(key, value)...)

	if len(w.curBlock) >= w.blockSize {
		return w.flushBlock()
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.curBlock) == 0 {
		return nil
	}
	payload := w.curBlock
	if w.compress {
		payload = w.enc.EncodeAll(w.curBlock, nil)
	}
	n, err := w.f.Write(payload)
	if err != nil {
		return fmt.Errorf("sstable: write block: %w", err)
	}
	w.index = append(w.index, indexEntry{
		firstKey: *w.curFirstKey,
		offset:   w.offset,
		length:   uint32(n),
	})
	w.offset += uint64(n)
	w.blockCount++
	w.curBlock = nil
	w.curFirstKey = nil
	return nil
}

// Finish flushes the last block and writes the index, bloom filter, and
// footer, returning the resulting Meta.
func (w *Writer) Finish(fileID uint64) (Meta, error) {
	if err := w.flushBlock(); err != nil {
		return Meta{}, err
	}

	indexOffset := w.offset
	for _, e := range w.index {
		buf := encodeIndexEntry(e)
		n, err := w.f.Write(buf)
		if err != nil {
			return Meta{}, fmt.Errorf("sstable: write index: %w", err)
		}
		w.offset += uint64(n)
	}

	bloomOffset := w.offset
	bloomBuf := encodeBloom(w.bloom)
	n, err := w.f.Write(bloomBuf)
	if err != nil {
		return Meta{}, fmt.Errorf("sstable: write bloom: %w", err)
	}
	w.offset += uint64(n)

	ft := encodeFooter(footer{indexOffset: indexOffset, bloomOffset: bloomOffset, magic: Magic})
	if _, err := w.f.Write(ft); err != nil {
		return Meta{}, fmt.Errorf("sstable: write footer: %w", err)
	}

	if err := w.f.Sync(); err != nil {
		return Meta{}, fmt.Errorf("sstable: fsync: %w", err)
	}
	st, err := w.f.Stat()
	if err != nil {
		return Meta{}, err
	}
	if err := w.f.Close(); err != nil {
		return Meta{}, fmt.Errorf("sstable: close: %w", err)
	}
	if w.enc != nil {
		w.enc.Close()
	}

	return Meta{
		FileID:   fileID,
		Filename: w.path,
		MinKey:   w.minKey,
		MaxKey:   w.maxKey,
		MaxSeq:   w.maxSeq,
		Size:     st.Size(),
	}, nil
}

// NumKeys returns the count of InternalKeys written so far.
func (w *Writer) NumKeys() int { return w.numKeys }
