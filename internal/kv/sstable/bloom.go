package sstable

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// bloomFilter is a classic k-hash bloom filter over user keys, built to
// keep the false-positive rate at or below 1% for the configured entry
// count (§4.3).
type bloomFilter struct {
	bits []byte
	k    int
}

const targetFalsePositiveRate = 0.01

func newBloomFilter(numKeys int) *bloomFilter {
	if numKeys < 1 {
		numKeys = 1
	}
	m := bloomBits(numKeys, targetFalsePositiveRate)
	k := bloomHashCount(m, numKeys)
	return &bloomFilter{bits: make([]byte, (m+7)/8), k: k}
}

func bloomBits(n int, p float64) int {
	m := -1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	if m < 8 {
		m = 8
	}
	return int(math.Ceil(m))
}

func bloomHashCount(m, n int) int {
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return k
}

func (b *bloomFilter) add(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	nbits := uint64(len(b.bits) * 8)
	for i := 0; i < b.k; i++ {
		idx := (h1 + uint64(i)*h2) % nbits
		b.bits[idx/8] |= 1 << (idx % 8)
	}
}

func (b *bloomFilter) mayContain(key []byte) bool {
	if len(b.bits) == 0 {
		return true
	}
	h1, h2 := murmur3.Sum128(key)
	nbits := uint64(len(b.bits) * 8)
	for i := 0; i < b.k; i++ {
		idx := (h1 + uint64(i)*h2) % nbits
		if b.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

func encodeBloom(b *bloomFilter) []byte {
	out := make([]byte, 0, 5+len(b.bits))
	out = append(out, byte(b.k))
	out = append(out, b.bits...)
	return out
}

func decodeBloom(raw []byte) *bloomFilter {
	if len(raw) < 1 {
		return &bloomFilter{k: 1}
	}
	return &bloomFilter{k: int(raw[0]), bits: raw[1:]}
}
