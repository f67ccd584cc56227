// Package lockmgr implements the lock manager (C12): pessimistic,
// optimistic, and hybrid resource-locking strategies with wait-for-graph
// deadlock detection, grounded on §4.10.
package lockmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ordkv/ordkv/internal/kverrors"
	"github.com/ordkv/ordkv/pkg/cmap"
)

// Mode is a lock grant mode. Only Shared and Exclusive are exercised by
// the transaction manager (C13); the intention modes are carried to
// match the resource hierarchy locking vocabulary the original lock
// table models, even though this core has no table/row hierarchy to
// intend-lock.
type Mode int

const (
	ModeNone Mode = iota
	ModeShared
	ModeExclusive
	ModeIntentionShared
	ModeIntentionExclusive
	ModeSharedIntentionExclusive
)

// compatibility is the lock-mode compatibility matrix: compatibility[a][b]
// reports whether a held grant in mode a admits a new grant in mode b.
var compatibility = map[Mode]map[Mode]bool{
	ModeShared:                   {ModeShared: true, ModeIntentionShared: true},
	ModeExclusive:                {},
	ModeIntentionShared:          {ModeShared: true, ModeIntentionShared: true, ModeIntentionExclusive: true, ModeSharedIntentionExclusive: true},
	ModeIntentionExclusive:       {ModeIntentionShared: true, ModeIntentionExclusive: true},
	ModeSharedIntentionExclusive: {ModeIntentionShared: true},
}

// IsCompatible reports whether requested may be granted alongside an
// existing grant in mode existing.
func IsCompatible(existing, requested Mode) bool {
	if existing == ModeNone {
		return true
	}
	row, ok := compatibility[existing]
	if !ok {
		return false
	}
	return row[requested]
}

// grant is one held lock on a resource.
type grant struct {
	txnID uint64
	mode  Mode
}

// waiter is a blocked acquire call, woken by a grant release.
type waiter struct {
	txnID uint64
	mode  Mode
	ready chan struct{}
}

// entry is the lock table's per-resource state.
type entry struct {
	mu      sync.Mutex
	grants  []grant
	waiters []*waiter
}

func (e *entry) grantedMode(txnID uint64) Mode {
	for _, g := range e.grants {
		if g.txnID == txnID {
			return g.mode
		}
	}
	return ModeNone
}

// canGrant reports whether mode is compatible with every other txn's
// current grant on this resource.
func (e *entry) canGrant(txnID uint64, mode Mode) bool {
	if len(e.waiters) > 0 {
		return false // FIFO fairness: don't jump the queue
	}
	for _, g := range e.grants {
		if g.txnID == txnID {
			continue
		}
		if !IsCompatible(g.mode, mode) {
			return false
		}
	}
	return true
}

func (e *entry) blockingHolders(txnID uint64, mode Mode) []uint64 {
	var holders []uint64
	for _, g := range e.grants {
		if g.txnID != txnID && !IsCompatible(g.mode, mode) {
			holders = append(holders, g.txnID)
		}
	}
	return holders
}

// Stats summarizes lock manager activity.
type Stats struct {
	TotalLocks        int
	WaitingRequests   int
	GrantedRequests   uint64
	TimeoutRequests   uint64
	DeadlocksDetected uint64
}

// PessimisticManager grants locks immediately when compatible and
// blocks (with timeout) otherwise, tracking a wait-for graph for
// deadlock detection.
type PessimisticManager struct {
	table *cmap.Map[string, *entry]

	txnLocksMu sync.Mutex
	txnLocks   map[uint64]map[string]struct{}

	waitMu  sync.Mutex
	waitFor map[uint64]map[uint64]struct{} // waiting txn -> set of blocking txns

	granted   atomic.Uint64
	timeouts  atomic.Uint64
	deadlocks atomic.Uint64
}

// NewPessimistic returns an empty pessimistic lock manager.
func NewPessimistic() *PessimisticManager {
	return &PessimisticManager{
		table:    cmap.New[string, *entry](),
		txnLocks: make(map[uint64]map[string]struct{}),
		waitFor:  make(map[uint64]map[uint64]struct{}),
	}
}

func (m *PessimisticManager) entryFor(resource string) *entry {
	e, _ := m.table.GetOrSet(resource, &entry{})
	return e
}

// Acquire blocks until txnID holds mode on resource, the deadline
// passes, or ctx is cancelled, per §4.10's acquisition algorithm.
func (m *PessimisticManager) Acquire(ctx context.Context, txnID uint64, resource string, mode Mode, timeout time.Duration) error {
	e := m.entryFor(resource)

	e.mu.Lock()
	if existing := e.grantedMode(txnID); existing != ModeNone {
		if existing == mode || IsCompatible(existing, mode) {
			e.mu.Unlock()
			return nil
		}
	}
	if e.canGrant(txnID, mode) {
		e.grants = append(e.grants, grant{txnID: txnID, mode: mode})
		e.mu.Unlock()
		m.recordGrant(txnID, resource)
		m.granted.Add(1)
		return nil
	}

	blockers := e.blockingHolders(txnID, mode)
	w := &waiter{txnID: txnID, mode: mode, ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	e.mu.Unlock()

	m.updateWaitGraph(txnID, blockers)
	defer m.removeFromWaitGraph(txnID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.ready:
		m.recordGrant(txnID, resource)
		m.granted.Add(1)
		return nil
	case <-timer.C:
		e.mu.Lock()
		e.waiters = removeWaiter(e.waiters, w)
		e.mu.Unlock()
		m.timeouts.Add(1)
		return kverrors.ErrLockTimeout
	case <-ctx.Done():
		e.mu.Lock()
		e.waiters = removeWaiter(e.waiters, w)
		e.mu.Unlock()
		return ctx.Err()
	}
}

func removeWaiter(ws []*waiter, target *waiter) []*waiter {
	out := ws[:0:0]
	for _, w := range ws {
		if w != target {
			out = append(out, w)
		}
	}
	return out
}

// grantCompatible pulls as many FIFO-ordered waiters as are jointly
// compatible with current grants off the front of the queue.
func (e *entry) grantCompatible() {
	for len(e.waiters) > 0 {
		w := e.waiters[0]
		ok := true
		for _, g := range e.grants {
			if g.txnID != w.txnID && !IsCompatible(g.mode, w.mode) {
				ok = false
				break
			}
		}
		if !ok {
			return
		}
		e.waiters = e.waiters[1:]
		e.grants = append(e.grants, grant{txnID: w.txnID, mode: w.mode})
		close(w.ready)
	}
}

func (m *PessimisticManager) recordGrant(txnID uint64, resource string) {
	m.txnLocksMu.Lock()
	defer m.txnLocksMu.Unlock()
	if m.txnLocks[txnID] == nil {
		m.txnLocks[txnID] = make(map[string]struct{})
	}
	m.txnLocks[txnID][resource] = struct{}{}
}

// Release drops txnID's grant on resource and wakes any now-compatible
// waiters.
func (m *PessimisticManager) Release(txnID uint64, resource string) {
	e, ok := m.table.Get(resource)
	if !ok {
		return
	}
	e.mu.Lock()
	kept := e.grants[:0:0]
	for _, g := range e.grants {
		if g.txnID != txnID {
			kept = append(kept, g)
		}
	}
	e.grants = kept
	e.grantCompatible()
	e.mu.Unlock()

	m.txnLocksMu.Lock()
	delete(m.txnLocks[txnID], resource)
	m.txnLocksMu.Unlock()
}

// ReleaseAll drops every lock txnID holds.
func (m *PessimisticManager) ReleaseAll(txnID uint64) {
	m.txnLocksMu.Lock()
	resources := make([]string, 0, len(m.txnLocks[txnID]))
	for r := range m.txnLocks[txnID] {
		resources = append(resources, r)
	}
	delete(m.txnLocks, txnID)
	m.txnLocksMu.Unlock()

	for _, r := range resources {
		m.Release(txnID, r)
	}
}

// HasLock reports whether txnID currently holds any grant on resource.
func (m *PessimisticManager) HasLock(txnID uint64, resource string) bool {
	return m.GetMode(txnID, resource) != ModeNone
}

// GetMode returns the mode txnID currently holds on resource.
func (m *PessimisticManager) GetMode(txnID uint64, resource string) Mode {
	e, ok := m.table.Get(resource)
	if !ok {
		return ModeNone
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grantedMode(txnID)
}

func (m *PessimisticManager) updateWaitGraph(waiting uint64, blocking []uint64) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	set := m.waitFor[waiting]
	if set == nil {
		set = make(map[uint64]struct{})
		m.waitFor[waiting] = set
	}
	for _, b := range blocking {
		set[b] = struct{}{}
	}
}

func (m *PessimisticManager) removeFromWaitGraph(txnID uint64) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	delete(m.waitFor, txnID)
}

// DetectDeadlock reports whether the current wait-for graph contains a
// cycle.
func (m *PessimisticManager) DetectDeadlock() bool {
	cycle := m.FindCycle()
	return len(cycle) > 0
}

// FindCycle runs DFS over the wait-for graph and returns the first
// cycle found, or nil.
func (m *PessimisticManager) FindCycle() []uint64 {
	m.waitMu.Lock()
	graph := make(map[uint64][]uint64, len(m.waitFor))
	for txn, set := range m.waitFor {
		for b := range set {
			graph[txn] = append(graph[txn], b)
		}
	}
	m.waitMu.Unlock()

	visited := make(map[uint64]bool)
	recStack := make(map[uint64]bool)
	var path []uint64

	var dfs func(node uint64) []uint64
	dfs = func(node uint64) []uint64 {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)
		for _, next := range graph[node] {
			if recStack[next] {
				// found the cycle: slice path from next's first occurrence
				for i, n := range path {
					if n == next {
						return append([]uint64(nil), path[i:]...)
					}
				}
			}
			if !visited[next] {
				if cyc := dfs(next); cyc != nil {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		recStack[node] = false
		return nil
	}

	for node := range graph {
		if !visited[node] {
			if cyc := dfs(node); cyc != nil {
				m.deadlocks.Add(1)
				return cyc
			}
		}
	}
	return nil
}

// Victim picks the youngest (highest id) transaction in a cycle to
// abort, per §4.10.
func Victim(cycle []uint64) uint64 {
	victim := cycle[0]
	for _, id := range cycle[1:] {
		if id > victim {
			victim = id
		}
	}
	return victim
}

// Statistics returns a point-in-time summary.
func (m *PessimisticManager) Statistics() Stats {
	totalLocks := 0
	waiting := 0
	m.table.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		totalLocks += len(e.grants)
		waiting += len(e.waiters)
		e.mu.Unlock()
		return true
	})
	return Stats{
		TotalLocks:        totalLocks,
		WaitingRequests:   waiting,
		GrantedRequests:   m.granted.Load(),
		TimeoutRequests:   m.timeouts.Load(),
		DeadlocksDetected: m.deadlocks.Load(),
	}
}

// RunDeadlockDetection runs FindCycle on a fixed cadence, aborting the
// victim of any cycle found via abort.
func (m *PessimisticManager) RunDeadlockDetection(ctx context.Context, interval time.Duration, abort func(txnID uint64)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if cycle := m.FindCycle(); len(cycle) > 0 {
				victim := Victim(cycle)
				m.ReleaseAll(victim)
				m.removeFromWaitGraph(victim)
				abort(victim)
			}
		}
	}
}
