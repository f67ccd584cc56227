// Package memtable implements the in-memory ordered key->value table
// (C2): entries are stored as InternalKeys in a google/btree-ordered
// index so a get scans the equal-user_key prefix in descending-seq
// order and returns the first whose seq <= snapshot_seq.
package memtable

import (
	"math"
	"sync"

	"github.com/google/btree"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
)

const degree = 32

// entry pairs an InternalKey with its value (empty for tombstones).
type entry struct {
	key   internalkey.Key
	value []byte
}

func less(a, b entry) bool { return internalkey.Less(a.key, b.key) }

// GetResult distinguishes a found value from a tombstone from a miss.
type GetResult int

const (
	Miss GetResult = iota
	Found
	Tombstone
)

// MemTable is the engine's mutable write buffer.
type MemTable struct {
	mu          sync.RWMutex
	tree        *btree.BTreeG[entry]
	approxBytes int64
	sealed      bool
}

// New creates an empty MemTable.
func New() *MemTable {
	return &MemTable{tree: btree.NewG(degree, less)}
}

// Put inserts a versioned value.
func (m *MemTable) Put(key, value []byte, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := internalkey.Key{UserKey: cloneBytes(key), Seq: seq, Kind: internalkey.KindPut}
	m.tree.ReplaceOrInsert(entry{key: k, value: cloneBytes(value)})
	m.approxBytes += int64(len(key) + len(value) + 24)
}

// Del inserts a tombstone.
func (m *MemTable) Del(key []byte, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := internalkey.Key{UserKey: cloneBytes(key), Seq: seq, Kind: internalkey.KindDel}
	m.tree.ReplaceOrInsert(entry{key: k})
	m.approxBytes += int64(len(key) + 24)
}

// Size returns the approximate byte footprint of the table's entries.
func (m *MemTable) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approxBytes
}

// Get returns the newest version of key visible at snapshotSeq.
func (m *MemTable) Get(key []byte, snapshotSeq uint64) (value []byte, result GetResult) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pivot := entry{key: internalkey.Key{UserKey: key, Seq: math.MaxUint64, Kind: internalkey.KindPut}}
	result = Miss
	m.tree.AscendGreaterOrEqual(pivot, func(e entry) bool {
		if !internalkey.SameUserKey(e.key, pivot.key) {
			return false
		}
		if e.key.Seq > snapshotSeq {
			return true // keep scanning, still looking for seq <= snapshot
		}
		if e.key.Kind == internalkey.KindDel {
			result = Tombstone
		} else {
			result = Found
			value = e.value
		}
		return false
	})
	return value, result
}

// ApproxBytes returns the approximate byte size of the table.
func (m *MemTable) ApproxBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approxBytes
}

// Len returns the number of InternalKey entries (including tombstones
// and multiple versions of the same user key).
func (m *MemTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Seal marks the table immutable ahead of a flush; further writes
// should not be routed to a sealed table by callers.
func (m *MemTable) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sealed = true
}

// Sealed reports whether Seal has been called.
func (m *MemTable) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// Entry is an exported (key, value) pair produced by Iter.
type Entry struct {
	Key   internalkey.Key
	Value []byte
}

// Iter returns every entry in ascending user_key / descending seq
// order, the order the merge iterator (C7) expects from a child.
func (m *MemTable) Iter() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, m.tree.Len())
	m.tree.Ascend(func(e entry) bool {
		out = append(out, Entry{Key: e.key, Value: e.value})
		return true
	})
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
