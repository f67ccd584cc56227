// Package mergeiter implements the merge iterator (C7): given child
// iterators each producing InternalKeys in ascending user_key /
// descending seq order, it emits the single newest version of each
// distinct user_key visible at a snapshot, suppressing tombstones.
package mergeiter

import (
	"bytes"
	"container/heap"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
	"github.com/ordkv/ordkv/internal/kv/memtable"
	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// Pair is a decoded InternalKey/value pair, the unit a ChildIterator
// produces.
type Pair struct {
	Key   internalkey.Key
	Value []byte
}

// ChildIterator is the source contract the merge iterator consumes:
// MemTable.Iter, SSTable.Reader.ScanAll, or any other ordered producer.
type ChildIterator interface {
	Valid() bool
	Key() internalkey.Key
	Value() []byte
	Next()
}

// sliceIterator is the concrete ChildIterator over an in-memory, already
// sorted []Pair — how MemTable and SSTable contents are fed into a merge.
type sliceIterator struct {
	pairs []Pair
	pos   int
}

// NewSliceIterator wraps pairs, assumed already sorted by InternalKey.
func NewSliceIterator(pairs []Pair) ChildIterator {
	return &sliceIterator{pairs: pairs}
}

func (s *sliceIterator) Valid() bool             { return s.pos < len(s.pairs) }
func (s *sliceIterator) Key() internalkey.Key    { return s.pairs[s.pos].Key }
func (s *sliceIterator) Value() []byte           { return s.pairs[s.pos].Value }
func (s *sliceIterator) Next()                   { s.pos++ }

// FromMemTable adapts a MemTable snapshot's entries into a ChildIterator.
func FromMemTable(entries []memtable.Entry) ChildIterator {
	pairs := make([]Pair, len(entries))
	for i, e := range entries {
		pairs[i] = Pair{Key: e.Key, Value: e.Value}
	}
	return NewSliceIterator(pairs)
}

// FromSSTable adapts an SST reader's decoded records into a
// ChildIterator.
func FromSSTable(records []sstable.Record) ChildIterator {
	pairs := make([]Pair, len(records))
	for i, r := range records {
		pairs[i] = Pair{Key: r.Key, Value: r.Value}
	}
	return NewSliceIterator(pairs)
}

// heapItem is one child's current position, ordered in the min-heap by
// (user_key asc, seq desc, childIdx asc) per §4.5: childIdx breaks
// remaining ties in favor of the newer source (lower index wins).
type heapItem struct {
	childIdx int
	key      internalkey.Key
	value    []byte
}

type itemHeap []heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if c := internalkey.Compare(h[i].key, h[j].key); c != 0 {
		return c < 0
	}
	return h[i].childIdx < h[j].childIdx
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator merges an ordered set of child iterators into a single
// newest-version-per-key stream visible at snapshotSeq.
type MergeIterator struct {
	children []ChildIterator
	h        itemHeap

	snapshotSeq uint64
	prefix      []byte

	valid    bool
	curKey   internalkey.Key
	curValue []byte
}

// New builds a MergeIterator over children, positioned before the first
// entry; call Next (or SeekToFirst) to begin iteration.
func New(children []ChildIterator, snapshotSeq uint64) *MergeIterator {
	it := &MergeIterator{children: children, snapshotSeq: snapshotSeq}
	it.rebuildHeap()
	return it
}

func (it *MergeIterator) rebuildHeap() {
	it.h = it.h[:0]
	for idx, c := range it.children {
		if c.Valid() {
			heap.Push(&it.h, heapItem{childIdx: idx, key: c.Key(), value: c.Value()})
		}
	}
}

func (it *MergeIterator) pushChildHead(idx int) {
	c := it.children[idx]
	if c.Valid() {
		heap.Push(&it.h, heapItem{childIdx: idx, key: c.Key(), value: c.Value()})
	}
}

// SeekToFirst re-initializes the heap and positions at the first visible
// entry.
func (it *MergeIterator) SeekToFirst() {
	it.rebuildHeap()
	it.prefix = nil
	it.advance()
}

// SeekWithPrefix re-initializes the heap and restricts emission to
// user_keys starting with p.
func (it *MergeIterator) SeekWithPrefix(p []byte) {
	it.rebuildHeap()
	it.prefix = p
	for it.h.Len() > 0 && bytes.Compare(it.h[0].key.UserKey, p) < 0 {
		item := heap.Pop(&it.h).(heapItem)
		it.children[item.childIdx].Next()
		it.pushChildHead(item.childIdx)
	}
	it.advance()
}

// Seek re-initializes the heap and positions at the first entry whose
// user_key is >= target.
func (it *MergeIterator) Seek(target []byte) {
	it.rebuildHeap()
	it.prefix = nil
	for it.h.Len() > 0 && bytes.Compare(it.h[0].key.UserKey, target) < 0 {
		item := heap.Pop(&it.h).(heapItem)
		it.children[item.childIdx].Next()
		it.pushChildHead(item.childIdx)
	}
	it.advance()
}

// Valid reports whether the iterator currently points at an emitted
// entry.
func (it *MergeIterator) Valid() bool { return it.valid }

// Key returns the current user_key. Only valid while Valid() is true.
func (it *MergeIterator) Key() []byte { return it.curKey.UserKey }

// Value returns the current value. Only valid while Valid() is true.
func (it *MergeIterator) Value() []byte { return it.curValue }

// Next advances to the next distinct, visible, non-tombstone user_key.
func (it *MergeIterator) Next() { it.advance() }

// advance pops the next distinct user_key group off the heap, selects
// the newest version visible at snapshotSeq, advances every child that
// held a version of that key, suppresses tombstones, and stops once a
// key no longer starts with the active prefix.
func (it *MergeIterator) advance() {
	for {
		if it.h.Len() == 0 {
			it.valid = false
			return
		}

		first := heap.Pop(&it.h).(heapItem)
		groupKey := first.key.UserKey

		var winner *heapItem
		if first.key.Seq <= it.snapshotSeq {
			w := first
			winner = &w
		}
		it.children[first.childIdx].Next()
		it.pushChildHead(first.childIdx)

		for it.h.Len() > 0 && bytes.Equal(it.h[0].key.UserKey, groupKey) {
			next := heap.Pop(&it.h).(heapItem)
			if winner == nil && next.key.Seq <= it.snapshotSeq {
				w := next
				winner = &w
			}
			it.children[next.childIdx].Next()
			it.pushChildHead(next.childIdx)
		}

		if winner == nil {
			continue // no version of this key is visible at snapshotSeq
		}

		if it.prefix != nil && !bytes.HasPrefix(groupKey, it.prefix) {
			it.valid = false
			return
		}

		if winner.key.Kind == internalkey.KindDel {
			continue // tombstone: suppress and move to the next distinct key
		}

		it.curKey = winner.key
		it.curValue = winner.value
		it.valid = true
		return
	}
}
