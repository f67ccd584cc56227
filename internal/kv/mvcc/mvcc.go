// Package mvcc implements the MVCC version-chain manager (C11): a
// timestamp-ordered multi-version store layered logically above the LSM
// engine, independent of it so the core can be tested in isolation per
// §4.9.
package mvcc

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ordkv/ordkv/pkg/cmap"
)

// VersionedValue is one version of a key: a value stamped with the
// transaction that created it and the create/delete timestamps bounding
// its visibility window.
type VersionedValue struct {
	Value       []byte
	Version     uint64
	CreateTS    uint64
	DeleteTS    uint64 // 0 means not deleted
	TxnID       uint64
	IsCommitted bool
}

// visibleTo reports whether this version is observable by a reader at
// readTS, per §4.9's read rule.
func (v *VersionedValue) visibleTo(readTS uint64) bool {
	return v.IsCommitted && v.CreateTS <= readTS && (v.DeleteTS == 0 || v.DeleteTS > readTS)
}

// versionChain holds every version ever written for one key, newest
// last; reads scan it backwards for the newest version visible at a
// timestamp.
type versionChain struct {
	mu       sync.RWMutex
	key      string
	versions []*VersionedValue
}

func newVersionChain(key string) *versionChain {
	return &versionChain{key: key}
}

func (c *versionChain) addVersion(v *VersionedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions = append(c.versions, v)
}

// visibleVersion returns the newest version visible at readTS, or nil.
func (c *versionChain) visibleVersion(readTS uint64) *VersionedValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.versions) - 1; i >= 0; i-- {
		if c.versions[i].visibleTo(readTS) {
			return c.versions[i]
		}
	}
	return nil
}

func (c *versionChain) latest() *VersionedValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.versions) == 0 {
		return nil
	}
	return c.versions[len(c.versions)-1]
}

// commitTxn flips every uncommitted version created by txnID to
// committed with commitTS.
func (c *versionChain) commitTxn(txnID, commitTS uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.versions {
		if v.TxnID == txnID && !v.IsCommitted {
			v.IsCommitted = true
			v.CreateTS = commitTS
		}
	}
}

// abortTxn drops every uncommitted version created by txnID.
func (c *versionChain) abortTxn(txnID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.versions[:0:0]
	for _, v := range c.versions {
		if v.TxnID == txnID && !v.IsCommitted {
			continue
		}
		kept = append(kept, v)
	}
	c.versions = kept
}

// markDeleted stamps deleteTS on the most recent version written by
// txnID; no new version is appended.
func (c *versionChain) markDeleted(txnID, deleteTS uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.versions) - 1; i >= 0; i-- {
		if c.versions[i].TxnID == txnID {
			c.versions[i].DeleteTS = deleteTS
			return
		}
	}
}

// gc keeps the newest committed version, and among older ones discards
// anything the min active timestamp can no longer see, per §4.9.
func (c *versionChain) gc(minActiveTS uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.versions) <= 1 {
		return 0
	}
	sort.Slice(c.versions, func(i, j int) bool {
		return c.versions[i].CreateTS < c.versions[j].CreateTS
	})
	newest := c.versions[len(c.versions)-1]

	// floorIdx is the older committed version a reader at minActiveTS
	// still sees when newest is not visible there, else -1.
	floorIdx := -1
	if newest.CreateTS > minActiveTS || !newest.IsCommitted {
		for i := len(c.versions) - 2; i >= 0; i-- {
			if c.versions[i].IsCommitted && c.versions[i].CreateTS <= minActiveTS {
				floorIdx = i
				break
			}
		}
	}

	cleaned := 0
	kept := make([]*VersionedValue, 0, len(c.versions))
	for i, v := range c.versions[:len(c.versions)-1] {
		if v.DeleteTS > 0 && v.DeleteTS < minActiveTS {
			cleaned++
			continue
		}
		if v.CreateTS < minActiveTS && i != floorIdx {
			// shadowed by a newer version that a reader at the floor sees
			cleaned++
			continue
		}
		kept = append(kept, v)
	}
	kept = append(kept, newest)
	c.versions = kept
	return cleaned
}

func (c *versionChain) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.versions)
}

// Stats summarizes manager-wide state for observability.
type Stats struct {
	TotalKeys          int
	TotalVersions      int
	ActiveTransactions int
	GCRuns             uint64
	VersionsCleaned    uint64
}

// Manager is the MVCC version-chain manager (C11).
type Manager struct {
	chains *cmap.Map[string, *versionChain]

	txnMu   sync.Mutex
	active  map[uint64]uint64 // txn_id -> start_ts

	globalTS atomic.Uint64
	nextVer  atomic.Uint64

	gcRuns          atomic.Uint64
	versionsCleaned atomic.Uint64
}

// New returns an empty manager.
func New() *Manager {
	return &Manager{
		chains: cmap.New[string, *versionChain](),
		active: make(map[uint64]uint64),
	}
}

func (m *Manager) chainFor(key string) *versionChain {
	if c, ok := m.chains.Get(key); ok {
		return c
	}
	c, _ := m.chains.GetOrSet(key, newVersionChain(key))
	return c
}

// NextTimestamp allocates a fresh global timestamp, used by callers as
// both start_ts and commit_ts per the caller's protocol phase.
func (m *Manager) NextTimestamp() uint64 { return m.globalTS.Add(1) }

// CurrentTimestamp peeks the latest allocated timestamp without
// allocating a new one, used for per-statement READ_COMMITTED snapshots.
func (m *Manager) CurrentTimestamp() uint64 { return m.globalTS.Load() }

// BeginTxn registers txnID as active at startTS, establishing the read
// floor other transactions' GC must respect until it ends.
func (m *Manager) BeginTxn(txnID, startTS uint64) {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()
	m.active[txnID] = startTS
}

// EndTxn unregisters txnID, called on both commit and abort.
func (m *Manager) EndTxn(txnID uint64) {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()
	delete(m.active, txnID)
}

// LatestCommitTS returns the CreateTS of the newest committed version
// of key, or 0 if key has never been committed. Used by the
// transaction manager's commit-time conflict check.
func (m *Manager) LatestCommitTS(key string) uint64 {
	c, ok := m.chains.Get(key)
	if !ok {
		return 0
	}
	v := c.latest()
	if v == nil || !v.IsCommitted {
		return 0
	}
	return v.CreateTS
}

// Read returns the value visible to readTS, or (nil, false) if no
// committed version is visible.
func (m *Manager) Read(key string, readTS uint64) ([]byte, bool) {
	c, ok := m.chains.Get(key)
	if !ok {
		return nil, false
	}
	v := c.visibleVersion(readTS)
	if v == nil {
		return nil, false
	}
	return v.Value, true
}

// Write appends a new, as-yet-uncommitted version of key for txnID.
func (m *Manager) Write(key string, value []byte, txnID, writeTS uint64) {
	c := m.chainFor(key)
	c.addVersion(&VersionedValue{
		Value:    append([]byte(nil), value...),
		Version:  m.nextVer.Add(1),
		CreateTS: writeTS,
		TxnID:    txnID,
	})
}

// Remove appends a tombstone version for txnID.
func (m *Manager) Remove(key string, txnID, deleteTS uint64) {
	c := m.chainFor(key)
	c.addVersion(&VersionedValue{
		Version:  m.nextVer.Add(1),
		CreateTS: deleteTS,
		DeleteTS: deleteTS,
		TxnID:    txnID,
	})
}

// CommitTransaction flips every version created by txnID to committed
// at commitTS, across every key it touched.
func (m *Manager) CommitTransaction(txnID, commitTS uint64) {
	m.chains.Range(func(_ string, c *versionChain) bool {
		c.commitTxn(txnID, commitTS)
		return true
	})
	m.EndTxn(txnID)
}

// AbortTransaction discards every uncommitted version created by txnID.
func (m *Manager) AbortTransaction(txnID uint64) {
	m.chains.Range(func(_ string, c *versionChain) bool {
		c.abortTxn(txnID)
		return true
	})
	m.EndTxn(txnID)
}

// CreateSnapshot materializes every key's value visible at snapshotTS.
func (m *Manager) CreateSnapshot(snapshotTS uint64) map[string][]byte {
	out := make(map[string][]byte)
	m.chains.Range(func(key string, c *versionChain) bool {
		if v := c.visibleVersion(snapshotTS); v != nil {
			out[key] = v.Value
		}
		return true
	})
	return out
}

// minActiveTimestamp is the GC floor: the oldest start_ts among active
// transactions, or the current global timestamp if none are active.
func (m *Manager) minActiveTimestamp() uint64 {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()
	min := m.globalTS.Load()
	for _, ts := range m.active {
		if ts < min {
			min = ts
		}
	}
	return min
}

// RunGC sweeps every version chain, collapsing versions the current
// minimum active timestamp can no longer observe.
func (m *Manager) RunGC() int {
	floor := m.minActiveTimestamp()
	cleaned := 0
	m.chains.Range(func(_ string, c *versionChain) bool {
		cleaned += c.gc(floor)
		return true
	})
	m.gcRuns.Add(1)
	m.versionsCleaned.Add(uint64(cleaned))
	return cleaned
}

// Statistics returns a point-in-time summary of manager state.
func (m *Manager) Statistics() Stats {
	m.txnMu.Lock()
	active := len(m.active)
	m.txnMu.Unlock()

	totalVersions := 0
	m.chains.Range(func(_ string, c *versionChain) bool {
		totalVersions += c.count()
		return true
	})

	return Stats{
		TotalKeys:          m.chains.Count(),
		TotalVersions:      totalVersions,
		ActiveTransactions: active,
		GCRuns:             m.gcRuns.Load(),
		VersionsCleaned:    m.versionsCleaned.Load(),
	}
}
