package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ordkv/ordkv/internal/kv/memtable"
	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// Flush synchronously rotates the active MemTable (if non-empty) and
// blocks until every immutable MemTable has been written out as an L0
// SST, per §4.8's public "flush" operation.
func (e *Engine) Flush() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.writeMu.Lock()
	e.tablesMu.Lock()
	if e.active.Len() > 0 {
		old := e.active
		old.Seal()
		e.immutable = append(e.immutable, old)
		e.active = memtable.New()
	}
	e.tablesMu.Unlock()
	e.writeMu.Unlock()

	for {
		e.tablesMu.RLock()
		pending := len(e.immutable)
		e.tablesMu.RUnlock()
		if pending == 0 {
			return nil
		}
		if err := e.flushOnce(context.Background()); err != nil {
			return err
		}
	}
}

// flushLoop is the background worker driving immutable MemTables to
// disk, woken by rotateMemTable and on a fallback ticker (an explicit
// Flush runs flushOnce itself).
func (e *Engine) flushLoop(ctx context.Context) error {
	t := time.NewTicker(e.cfg.CompactionInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.flushCh:
		case <-t.C:
		}
		for e.hasImmutable() {
			if err := e.flushOnce(ctx); err != nil {
				e.cfg.Logger.Error("flush failed, engine poisoned", "error", err)
				e.poisoned.Store(true)
				return nil
			}
		}
	}
}

func (e *Engine) hasImmutable() bool {
	e.tablesMu.RLock()
	defer e.tablesMu.RUnlock()
	return len(e.immutable) > 0
}

// flushOnce writes the oldest immutable MemTable as an L0 SST, installs
// it into the version set, drops the MemTable, and truncates the WAL
// through its highest flushed seq. It retries with backoff on failure
// per §4.8's failure model; the MemTable stays pinned (unflushed,
// still servable for reads) until a retry succeeds or retries exhaust.
func (e *Engine) flushOnce(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.tablesMu.RLock()
	if len(e.immutable) == 0 {
		e.tablesMu.RUnlock()
		return nil
	}
	oldest := e.immutable[0]
	e.tablesMu.RUnlock()

	var lastErr error
	backoff := e.cfg.FlushBackoffBase
	for attempt := 0; attempt <= e.cfg.FlushMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		meta, err := e.writeMemTableSST(oldest)
		if err != nil {
			lastErr = err
			e.cfg.Logger.Warn("flush attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if err := e.versions.Install(map[int][]sstable.Meta{0: {meta}}, nil); err != nil {
			lastErr = fmt.Errorf("engine: install flushed sst: %w", err)
			continue
		}

		e.tablesMu.Lock()
		e.immutable = e.immutable[1:]
		e.tablesMu.Unlock()

		if err := e.walWriter.TruncateThrough(meta.MaxSeq); err != nil {
			e.cfg.Logger.Warn("wal truncate failed", "error", err)
		}

		select {
		case e.compactCh <- struct{}{}:
		default:
		}
		return nil
	}

	return fmt.Errorf("engine: flush exhausted retries: %w", lastErr)
}

func (e *Engine) writeMemTableSST(table *memtable.MemTable) (sstable.Meta, error) {
	entries := table.Iter()
	if len(entries) == 0 {
		return sstable.Meta{}, fmt.Errorf("engine: flush of empty memtable")
	}

	fileID := e.nextFileID.Add(1) - 1
	path := filepath.Join(e.cfg.DataDir, fmt.Sprintf("%06d.sst", fileID))

	w, err := sstable.NewWriter(path, len(entries), e.cfg.Compress)
	if err != nil {
		return sstable.Meta{}, fmt.Errorf("engine: open sst writer: %w", err)
	}
	for _, ent := range entries {
		if err := w.Add(ent.Key, ent.Value); err != nil {
			return sstable.Meta{}, fmt.Errorf("engine: write sst record: %w", err)
		}
	}
	return w.Finish(fileID)
}
