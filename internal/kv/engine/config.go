// Package engine composes the WAL, MemTable, SSTable, version set,
// block cache, snapshot manager, and compaction strategy into the
// public KV engine (C10): the write path, background flush and
// compaction workers, and the snapshot-scoped read path.
package engine

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordkv/ordkv/internal/kv/compaction"
	"github.com/ordkv/ordkv/internal/kv/wal"
)

// Default tuning values (§4.8, §6 Parameters).
const (
	DefaultMemTableBytesThreshold int64 = 4 << 20 // 4MB
	DefaultBlockCacheCapacity           = 4096
	DefaultFlushBackoffBase             = 50 * time.Millisecond
	DefaultFlushMaxRetries              = 5
	DefaultCompactionInterval           = 2 * time.Second
)

// Config configures one Engine instance.
type Config struct {
	// DataDir is the root directory for WAL segments, SST files, and
	// the MANIFEST.
	DataDir string

	WAL wal.Config

	// MemTableBytesThreshold triggers a MemTable rotation and flush
	// once the active table's approximate size exceeds it.
	MemTableBytesThreshold int64

	// BlockCacheCapacity bounds the number of cached SST blocks.
	BlockCacheCapacity int

	// Compress enables zstd block compression for new SSTs.
	Compress bool

	// CompactionStrategy picks compaction tasks; defaults to Leveled.
	CompactionStrategy compaction.Strategy

	// CompactionInterval is the background compaction worker's poll
	// cadence.
	CompactionInterval time.Duration

	// FlushBackoffBase and FlushMaxRetries govern the flush worker's
	// retry policy on failure (§4.8 failure model).
	FlushBackoffBase time.Duration
	FlushMaxRetries  int

	// Registerer optionally registers engine metrics (the block cache's
	// hit and miss counters). Nil disables registration.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// DefaultConfig returns a Config with every tunable at its spec default,
// rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:                dataDir,
		WAL:                    wal.DefaultConfig(dataDir + "/wal"),
		MemTableBytesThreshold: DefaultMemTableBytesThreshold,
		BlockCacheCapacity:     DefaultBlockCacheCapacity,
		CompactionStrategy:     compaction.Leveled{},
		CompactionInterval:     DefaultCompactionInterval,
		FlushBackoffBase:       DefaultFlushBackoffBase,
		FlushMaxRetries:        DefaultFlushMaxRetries,
		Logger:                 slog.Default(),
	}
}

func (c *Config) applyDefaults() {
	if c.MemTableBytesThreshold <= 0 {
		c.MemTableBytesThreshold = DefaultMemTableBytesThreshold
	}
	if c.BlockCacheCapacity <= 0 {
		c.BlockCacheCapacity = DefaultBlockCacheCapacity
	}
	if c.CompactionStrategy == nil {
		c.CompactionStrategy = compaction.Leveled{}
	}
	if c.CompactionInterval <= 0 {
		c.CompactionInterval = DefaultCompactionInterval
	}
	if c.FlushBackoffBase <= 0 {
		c.FlushBackoffBase = DefaultFlushBackoffBase
	}
	if c.FlushMaxRetries <= 0 {
		c.FlushMaxRetries = DefaultFlushMaxRetries
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
