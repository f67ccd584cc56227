package sstable

import (
	"fmt"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/ordkv/ordkv/internal/kv/cache"
	"github.com/ordkv/ordkv/internal/kv/internalkey"
	"github.com/ordkv/ordkv/internal/kverrors"
)

// Reader opens an immutable SST file for point lookups and range scans.
type Reader struct {
	meta     Meta
	f        *os.File
	index    []indexEntry
	bloom    *bloomFilter
	compress bool
	dec      *zstd.Decoder
	cache    *cache.BlockCache
}

// Open opens the SST file at meta.Filename, loading its index and bloom
// filter. blockCache may be nil, in which case blocks are always read
// from disk.
func Open(meta Meta, compress bool, blockCache *cache.BlockCache) (*Reader, error) {
	f, err := os.Open(meta.Filename)
	if err != nil {
		return nil, fmt.Errorf("sstable: open: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() < int64(footerSize) {
		f.Close()
		return nil, kverrors.ErrSSTChecksum
	}

	footerBuf := make([]byte, footerSize)
	if _, err := f.ReadAt(footerBuf, st.Size()-int64(footerSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: read footer: %w", err)
	}
	ft, err := decodeFooter(footerBuf)
	if err != nil {
		f.Close()
		return nil, kverrors.ErrSSTChecksum.WithCause(err)
	}

	bloomBuf := make([]byte, st.Size()-int64(footerSize)-int64(ft.bloomOffset))
	if _, err := f.ReadAt(bloomBuf, int64(ft.bloomOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: read bloom: %w", err)
	}

	indexBuf := make([]byte, int64(ft.bloomOffset)-int64(ft.indexOffset))
	if _, err := f.ReadAt(indexBuf, int64(ft.indexOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: read index: %w", err)
	}

	var index []indexEntry
	for len(indexBuf) > 0 {
		e, n, err := decodeIndexEntry(indexBuf)
		if err != nil {
			f.Close()
			return nil, kverrors.ErrSSTChecksum.WithCause(err)
		}
		index = append(index, e)
		indexBuf = indexBuf[n:]
	}

	r := &Reader{
		meta:     meta,
		f:        f,
		index:    index,
		bloom:    decodeBloom(bloomBuf),
		compress: compress,
		cache:    blockCache,
	}
	if compress {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sstable: zstd reader: %w", err)
		}
		r.dec = dec
	}
	return r, nil
}

// Meta returns the reader's file metadata.
func (r *Reader) Meta() Meta { return r.meta }

func (r *Reader) loadBlock(idx int) ([]byte, error) {
	e := r.index[idx]
	key := cache.Key{FileID: r.meta.FileID, Offset: e.offset}
	if r.cache != nil {
		if b, ok := r.cache.Get(key); ok {
			return b, nil
		}
	}

	raw := make([]byte, e.length)
	if _, err := r.f.ReadAt(raw, int64(e.offset)); err != nil {
		return nil, fmt.Errorf("sstable: read block: %w", err)
	}
	if r.compress {
		decoded, err := r.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, kverrors.ErrSSTChecksum.WithCause(err)
		}
		raw = decoded
	}

	if r.cache != nil {
		r.cache.Put(key, raw)
	}
	return raw, nil
}

// blockIndexFor returns the index of the last block whose first key is
// <= userKey, or -1 if userKey is before every block.
func (r *Reader) blockIndexFor(userKey []byte) int {
	i := sort.Search(len(r.index), func(i int) bool {
		return compareUserKey(r.index[i].firstKey.UserKey, userKey) > 0
	})
	return i - 1
}

func compareUserKey(a, b []byte) int {
	return internalkey.Compare(
		internalkey.Key{UserKey: a},
		internalkey.Key{UserKey: b},
	)
}

// Get returns the newest version of key visible at snapshotSeq.
func (r *Reader) Get(key []byte, snapshotSeq uint64) (value []byte, found, tombstone bool, err error) {
	if !r.bloom.mayContain(key) {
		return nil, false, false, nil
	}
	bi := r.blockIndexFor(key)
	if bi < 0 {
		return nil, false, false, nil
	}

	// When block bi starts with key itself, newer versions of key may end
	// the preceding block(s), so scan from the first block that can hold it.
	first := bi
	for first > 0 && string(r.index[first].firstKey.UserKey) == string(key) {
		first--
	}
	var block []byte
	for b := first; b <= bi; b++ {
		raw, err := r.loadBlock(b)
		if err != nil {
			return nil, false, false, err
		}
		block = append(block, raw...)
	}

	var bestSeq uint64
	haveBest := false
	for len(block) > 0 {
		k, v, n, derr := decodeRecord(block)
		if derr != nil {
			return nil, false, false, derr
		}
		block = block[n:]
		if string(k.UserKey) != string(key) {
			if haveBest {
				break
			}
			continue
		}
		if k.Seq > snapshotSeq {
			continue
		}
		if !haveBest || k.Seq > bestSeq {
			haveBest = true
			bestSeq = k.Seq
			if k.Kind == internalkey.KindDel {
				tombstone = true
				found = false
				value = nil
			} else {
				tombstone = false
				found = true
				value = v
			}
		}
	}
	return value, found, tombstone, nil
}

// Record is one decoded InternalKey/value pair produced by iteration.
type Record struct {
	Key   internalkey.Key
	Value []byte
}

// ScanAll decodes every record in the file in on-disk (ascending
// user_key / descending seq) order. Used by the merge iterator (C7).
func (r *Reader) ScanAll() ([]Record, error) {
	var out []Record
	for bi := range r.index {
		block, err := r.loadBlock(bi)
		if err != nil {
			return nil, err
		}
		for len(block) > 0 {
			k, v, n, derr := decodeRecord(block)
			if derr != nil {
				return nil, derr
			}
			block = block[n:]
			out = append(out, Record{Key: k, Value: v})
		}
	}
	return out, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.f.Close()
}
