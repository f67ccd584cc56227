package engine

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// compactionLoop is the background worker driving the active strategy,
// woken by a successful flush and on a fallback ticker.
func (e *Engine) compactionLoop(ctx context.Context) error {
	t := time.NewTicker(e.cfg.CompactionInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.compactCh:
		case <-t.C:
		}
		for e.currentStrategy().NeedsCompaction(e.versions.AllLevels()) {
			if err := e.Compact(); err != nil {
				e.cfg.Logger.Error("compaction failed, engine poisoned", "error", err)
				e.poisoned.Store(true)
				return nil
			}
		}
	}
}

// Compact runs one compaction task picked by the current strategy, per
// §4.8's public "compact" operation.
func (e *Engine) Compact() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.compactMu.Lock()
	defer e.compactMu.Unlock()

	strategy := e.currentStrategy()
	levels := e.versions.AllLevels()
	if !strategy.NeedsCompaction(levels) {
		return nil
	}
	task := strategy.PickCompaction(levels)
	if task == nil {
		return nil
	}

	allInputs := append(append([]sstable.Meta(nil), task.Inputs...), task.Overlapping...)
	if len(allInputs) == 0 {
		return nil
	}

	minActive := e.snapshots.MinActive()
	output, err := e.mergeCompact(allInputs, task.TargetLevel, minActive)
	if err != nil {
		return fmt.Errorf("engine: compact merge: %w", err)
	}

	adds := map[int][]sstable.Meta{}
	if output != nil {
		adds[task.TargetLevel] = []sstable.Meta{*output}
	}
	removes := map[int][]sstable.Meta{
		task.SourceLevel: task.Inputs,
	}
	if task.TargetLevel != task.SourceLevel {
		removes[task.TargetLevel] = task.Overlapping
	} else {
		removes[task.SourceLevel] = append(removes[task.SourceLevel], task.Overlapping...)
	}

	if err := e.versions.Install(adds, removes); err != nil {
		return fmt.Errorf("engine: install compaction result: %w", err)
	}

	for _, m := range allInputs {
		e.closeReader(m.Filename)
		os.Remove(m.Filename)
	}
	return nil
}

// isBottommost reports whether target is the lowest level with any data
// once this compaction's inputs are removed; only then is it safe to
// drop the single newest below-floor version of a tombstoned key.
func (e *Engine) isBottommost(target int) bool {
	return target >= e.versions.MaxLevel()
}

// mergeCompact k-way merges inputs' records into a single output SST on
// targetLevel, or returns a nil Meta if every key compacted away. Per
// §4.7/§4.8: above the bottommost level every version is kept (a lower
// level might still need an older value); at the bottommost level,
// versions with seq below minActive collapse to the single newest such
// version, dropped entirely if that version is a tombstone (no active
// snapshot can observe it or anything older).
func (e *Engine) mergeCompact(inputs []sstable.Meta, targetLevel int, minActive uint64) (*sstable.Meta, error) {
	var children [][]sstable.Record
	numKeys := 0
	for _, m := range inputs {
		recs, err := e.scanSST(m)
		if err != nil {
			return nil, err
		}
		children = append(children, recs)
		numKeys += len(recs)
	}

	bottommost := e.isBottommost(targetLevel)

	fileID := e.nextFileID.Add(1) - 1
	path := filepath.Join(e.cfg.DataDir, fmt.Sprintf("%06d.sst", fileID))
	w, err := sstable.NewWriter(path, numKeys, e.cfg.Compress)
	if err != nil {
		return nil, err
	}

	h := newCompactHeap(children)
	heap.Init(h)

	for h.Len() > 0 {
		first := heap.Pop(h).(compactItem)
		groupKey := first.key.UserKey
		group := []compactItem{first}
		for h.Len() > 0 && bytesEqual((*h)[0].key.UserKey, groupKey) {
			group = append(group, heap.Pop(h).(compactItem))
		}

		for _, item := range selectCompactedVersions(group, minActive, bottommost) {
			if err := w.Add(item.key, item.value); err != nil {
				return nil, err
			}
		}
	}

	if w.NumKeys() == 0 {
		os.Remove(path)
		return nil, nil
	}

	meta, err := w.Finish(fileID)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// selectCompactedVersions decides which versions of one user_key survive
// compaction; group is already sorted descending by seq (merge order).
func selectCompactedVersions(group []compactItem, minActive uint64, bottommost bool) []compactItem {
	if !bottommost {
		return group
	}
	var kept []compactItem
	keptBelowFloor := false
	for _, item := range group {
		if item.key.Seq >= minActive {
			kept = append(kept, item)
			continue
		}
		if keptBelowFloor {
			continue // superseded: an older below-floor version, no snapshot can reach it
		}
		keptBelowFloor = true
		if item.key.Kind == internalkey.KindDel {
			continue // tombstone below the floor: nothing beneath it is visible either
		}
		kept = append(kept, item)
	}
	return kept
}

// compactItem is one pending record from a child's scan, tracked with
// its source index so the heap can pull the next record from the same
// child once an item is popped.
type compactItem struct {
	childIdx int
	pos      int
	key      internalkey.Key
	value    []byte
}

// compactHeap is a container/heap min-heap over compactItems from
// multiple sorted []sstable.Record children, ordered the same way
// mergeiter orders its children: ascending user_key, descending seq.
type compactHeap struct {
	children [][]sstable.Record
	items    []compactItem
}

func newCompactHeap(children [][]sstable.Record) *compactHeap {
	h := &compactHeap{children: children}
	for idx, recs := range children {
		if len(recs) > 0 {
			h.items = append(h.items, compactItem{childIdx: idx, pos: 0, key: recs[0].Key, value: recs[0].Value})
		}
	}
	return h
}

func (h *compactHeap) Len() int { return len(h.items) }
func (h *compactHeap) Less(i, j int) bool {
	if c := internalkey.Compare(h.items[i].key, h.items[j].key); c != 0 {
		return c < 0
	}
	return h.items[i].childIdx < h.items[j].childIdx
}
func (h *compactHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *compactHeap) Push(x any)    { h.items = append(h.items, x.(compactItem)) }
func (h *compactHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]

	recs := h.children[item.childIdx]
	if item.pos+1 < len(recs) {
		next := recs[item.pos+1]
		heap.Push(h, compactItem{childIdx: item.childIdx, pos: item.pos + 1, key: next.Key, value: next.Value})
	}
	return item
}
