// Package cache implements the block cache (C4): a bounded, thread-safe
// LRU cache of decoded SSTable data blocks keyed by (fileId,
// block_offset), reporting its hit rate.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
)

// Key identifies one cached block.
type Key struct {
	FileID uint64
	Offset uint64
}

func (k Key) string() string { return fmt.Sprintf("%d:%d", k.FileID, k.Offset) }

// BlockCache is an LRU-approximated cache bounded by entry count.
type BlockCache struct {
	lru *lru.Cache

	hits   uint64
	misses uint64

	hitsMetric   prometheus.Counter
	missesMetric prometheus.Counter
}

// New creates a block cache holding at most capacity entries.
func New(capacity int, reg prometheus.Registerer) (*BlockCache, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	bc := &BlockCache{
		lru: l,
		hitsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordkv_block_cache_hits_total",
			Help: "Total block cache hits.",
		}),
		missesMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordkv_block_cache_misses_total",
			Help: "Total block cache misses.",
		}),
	}
	if reg != nil {
		reg.MustRegister(bc.hitsMetric, bc.missesMetric)
	}
	return bc, nil
}

// Get returns the cached block bytes for key, if present.
func (c *BlockCache) Get(key Key) ([]byte, bool) {
	v, ok := c.lru.Get(key.string())
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		c.missesMetric.Inc()
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	c.hitsMetric.Inc()
	return v.([]byte), true
}

// Put stores block bytes for key, evicting the least recently used
// entry if the cache is at capacity.
func (c *BlockCache) Put(key Key, block []byte) {
	c.lru.Add(key.string(), block)
}

// HitRate returns hits / (hits + misses), or 0 if there have been no
// lookups yet.
func (c *BlockCache) HitRate() float64 {
	h := atomic.LoadUint64(&c.hits)
	m := atomic.LoadUint64(&c.misses)
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// Len returns the number of entries currently cached.
func (c *BlockCache) Len() int { return c.lru.Len() }
