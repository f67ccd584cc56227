package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ordkv/ordkv/internal/kv/cache"
	"github.com/ordkv/ordkv/internal/kv/compaction"
	"github.com/ordkv/ordkv/internal/kv/memtable"
	"github.com/ordkv/ordkv/internal/kv/mergeiter"
	"github.com/ordkv/ordkv/internal/kv/snapshot"
	"github.com/ordkv/ordkv/internal/kv/sstable"
	"github.com/ordkv/ordkv/internal/kv/version"
	"github.com/ordkv/ordkv/internal/kv/wal"
	"github.com/ordkv/ordkv/internal/kverrors"
)

// Engine is the public KV engine (C10): the write path, background
// flush/compaction workers, and the snapshot-scoped read path over the
// WAL, MemTable, SSTable, and version set components.
type Engine struct {
	cfg Config

	writeMu sync.Mutex // serializes seq allocation, WAL append, and MemTable apply

	tablesMu  sync.RWMutex
	active    *memtable.MemTable
	immutable []*memtable.MemTable // oldest first

	flushMu   sync.Mutex // serializes flushOnce across the background loop and explicit Flush calls
	walWriter *wal.Writer
	versions  *version.Set
	cache     *cache.BlockCache
	snapshots *snapshot.Manager
	gate      *mergeiter.WriteGate

	readersMu sync.Mutex
	readers   map[string]*sstable.Reader

	globalSeq  atomic.Uint64
	nextFileID atomic.Uint64

	strategyMu sync.RWMutex
	strategy   compaction.Strategy

	compactMu sync.Mutex // serializes Compact across the background loop and explicit calls

	closed    atomic.Bool
	poisoned  atomic.Bool
	flushCh   chan struct{}
	compactCh chan struct{}

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Open opens (or creates) the engine at cfg.DataDir, replaying the
// MANIFEST and WAL to reconstruct in-memory state.
func Open(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("engine: data_dir is required")
	}
	cfg.applyDefaults()
	if cfg.WAL.Dir == "" {
		cfg.WAL = wal.DefaultConfig(cfg.DataDir + "/wal")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	versions, err := version.Open(cfg.DataDir, func(format string, args ...any) {
		cfg.Logger.Warn(fmt.Sprintf(format, args...))
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open version set: %w", err)
	}

	blockCache, err := cache.New(cfg.BlockCacheCapacity, cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("engine: open block cache: %w", err)
	}

	walWriter, err := wal.NewWriter(cfg.WAL)
	if err != nil {
		return nil, fmt.Errorf("engine: open wal writer: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		active:    memtable.New(),
		walWriter: walWriter,
		versions:  versions,
		cache:     blockCache,
		snapshots: snapshot.NewManager(),
		gate:      mergeiter.NewWriteGate(),
		readers:   make(map[string]*sstable.Reader),
		strategy:  cfg.CompactionStrategy,
		flushCh:   make(chan struct{}, 1),
		compactCh: make(chan struct{}, 1),
	}

	maxSeq := versions.MaxSeq()
	if err := wal.Replay(cfg.WAL.Dir,
		func(key, value []byte, seq uint64) {
			e.active.Put(key, value, seq)
			if seq > maxSeq {
				maxSeq = seq
			}
		},
		func(key []byte, seq uint64) {
			e.active.Del(key, seq)
			if seq > maxSeq {
				maxSeq = seq
			}
		},
	); err != nil {
		walWriter.Close()
		return nil, fmt.Errorf("engine: replay wal: %w", err)
	}
	e.globalSeq.Store(maxSeq)
	e.nextFileID.Store(versions.MaxFileID() + 1)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g
	g.Go(func() error { return e.flushLoop(gctx) })
	g.Go(func() error { return e.compactionLoop(gctx) })

	return e, nil
}

// CurrentSeq returns the latest allocated sequence number.
func (e *Engine) CurrentSeq() uint64 { return e.globalSeq.Load() }

// Close stops background workers and flushes the WAL writer. Any
// MemTable contents not yet flushed to an SST remain recoverable from
// the WAL on the next Open.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	e.group.Wait()

	e.readersMu.Lock()
	for _, r := range e.readers {
		r.Close()
	}
	e.readersMu.Unlock()

	return e.walWriter.Close()
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return kverrors.ErrEngineClosed
	}
	if e.poisoned.Load() {
		return kverrors.ErrEnginePoisoned
	}
	return nil
}

// GetSnapshot pins the current seq and returns it as a new snapshot
// handle.
func (e *Engine) GetSnapshot() uint64 {
	return e.snapshots.Create(e.globalSeq.Load())
}

// Release unpins a snapshot previously returned by GetSnapshot.
func (e *Engine) Release(snapshotSeq uint64) {
	e.snapshots.Release(snapshotSeq)
}

// SetCompactionStrategy swaps the strategy used by the background
// compaction worker and explicit Compact calls.
func (e *Engine) SetCompactionStrategy(s compaction.Strategy) {
	e.strategyMu.Lock()
	defer e.strategyMu.Unlock()
	e.strategy = s
}

func (e *Engine) currentStrategy() compaction.Strategy {
	e.strategyMu.RLock()
	defer e.strategyMu.RUnlock()
	return e.strategy
}

func (e *Engine) getReader(m sstable.Meta) (*sstable.Reader, error) {
	e.readersMu.Lock()
	defer e.readersMu.Unlock()
	if r, ok := e.readers[m.Filename]; ok {
		return r, nil
	}
	r, err := sstable.Open(m, e.cfg.Compress, e.cache)
	if err != nil {
		return nil, err
	}
	e.readers[m.Filename] = r
	return r, nil
}

func (e *Engine) closeReader(filename string) {
	e.readersMu.Lock()
	defer e.readersMu.Unlock()
	if r, ok := e.readers[filename]; ok {
		r.Close()
		delete(e.readers, filename)
	}
}
