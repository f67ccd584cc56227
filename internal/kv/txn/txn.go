// Package txn implements the transaction manager (C13): begin/commit/
// abort over the MVCC manager (C11) and lock manager (C12), with
// READ_COMMITTED, REPEATABLE_READ, and SERIALIZABLE isolation per
// §4.11.
package txn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ordkv/ordkv/internal/kv/lockmgr"
	"github.com/ordkv/ordkv/internal/kv/mvcc"
	"github.com/ordkv/ordkv/internal/kverrors"
)

// State is a transaction's lifecycle state.
type State int

const (
	StateActive State = iota
	StatePreparing
	StateCommitted
	StateAborted
)

// Isolation is the isolation level requested at Begin.
type Isolation int

const (
	ReadCommitted Isolation = iota
	RepeatableRead
	Serializable
)

// Context is one transaction's accumulated state: its id, isolation
// level, read/write sets, and lifecycle state.
type Context struct {
	ID        uint64
	Isolation Isolation
	StartTS   uint64

	mu         sync.Mutex
	state      State
	commitTS   uint64
	readSet    map[string]uint64 // key -> version read (REPEATABLE_READ/SERIALIZABLE)
	writeSet   map[string][]byte
	deleteSet  map[string]struct{}
}

// State returns the transaction's current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Manager is the transaction manager (C13), composing the MVCC
// manager and a pessimistic lock manager to implement SS2PL
// SERIALIZABLE commits.
type Manager struct {
	mvcc  *mvcc.Manager
	locks *lockmgr.PessimisticManager

	nextTxnID atomic.Uint64

	txnsMu sync.Mutex
	txns   map[uint64]*Context

	lockTimeout time.Duration
}

// New returns a transaction manager layered over mvccMgr and lockMgr.
func New(mvccMgr *mvcc.Manager, lockMgr *lockmgr.PessimisticManager) *Manager {
	return &Manager{
		mvcc:        mvccMgr,
		locks:       lockMgr,
		txns:        make(map[uint64]*Context),
		lockTimeout: 30 * time.Second,
	}
}

// Begin starts a new transaction at the given isolation level.
func (m *Manager) Begin(isolation Isolation) *Context {
	id := m.nextTxnID.Add(1)
	startTS := m.mvcc.NextTimestamp()
	m.mvcc.BeginTxn(id, startTS)

	ctx := &Context{
		ID:        id,
		Isolation: isolation,
		StartTS:   startTS,
		state:     StateActive,
		readSet:   make(map[string]uint64),
		writeSet:  make(map[string][]byte),
		deleteSet: make(map[string]struct{}),
	}
	m.txnsMu.Lock()
	m.txns[id] = ctx
	m.txnsMu.Unlock()
	return ctx
}

// Get returns the active transaction context for id, or nil.
func (m *Manager) Get(id uint64) *Context {
	m.txnsMu.Lock()
	defer m.txnsMu.Unlock()
	return m.txns[id]
}

// readTimestamp returns the timestamp a read within tx should use: a
// fresh per-statement snapshot under READ_COMMITTED, tx.StartTS
// otherwise.
func (m *Manager) readTimestamp(tx *Context) uint64 {
	if tx.Isolation == ReadCommitted {
		return m.mvcc.CurrentTimestamp()
	}
	return tx.StartTS
}

// Read performs a transactional read of key, taking a shared lock
// first under SERIALIZABLE isolation.
func (m *Manager) Read(ctx context.Context, tx *Context, key string) ([]byte, bool, error) {
	if tx.Isolation == Serializable {
		if err := m.locks.Acquire(ctx, tx.ID, key, lockmgr.ModeShared, m.lockTimeout); err != nil {
			return nil, false, err
		}
	}

	tx.mu.Lock()
	if v, ok := tx.writeSet[key]; ok {
		tx.mu.Unlock()
		return v, true, nil
	}
	if _, deleted := tx.deleteSet[key]; deleted {
		tx.mu.Unlock()
		return nil, false, nil
	}
	tx.mu.Unlock()

	readTS := m.readTimestamp(tx)
	value, ok := m.mvcc.Read(key, readTS)

	tx.mu.Lock()
	tx.readSet[key] = readTS
	tx.mu.Unlock()

	return value, ok, nil
}

// Write stages a write in tx's write set, taking an exclusive lock
// first under SERIALIZABLE isolation.
func (m *Manager) Write(ctx context.Context, tx *Context, key string, value []byte) error {
	if tx.Isolation == Serializable {
		if err := m.locks.Acquire(ctx, tx.ID, key, lockmgr.ModeExclusive, m.lockTimeout); err != nil {
			return err
		}
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateActive {
		return kverrors.ErrTxnNotActive
	}
	tx.writeSet[key] = append([]byte(nil), value...)
	delete(tx.deleteSet, key)
	return nil
}

// Delete stages a delete in tx's delete set.
func (m *Manager) Delete(ctx context.Context, tx *Context, key string) error {
	if tx.Isolation == Serializable {
		if err := m.locks.Acquire(ctx, tx.ID, key, lockmgr.ModeExclusive, m.lockTimeout); err != nil {
			return err
		}
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateActive {
		return kverrors.ErrTxnNotActive
	}
	delete(tx.writeSet, key)
	tx.deleteSet[key] = struct{}{}
	return nil
}

// Commit validates tx (snapshot-isolation conflict check for
// REPEATABLE_READ/SERIALIZABLE), applies its write/delete sets through
// the MVCC manager on success, and releases any locks held.
func (m *Manager) Commit(tx *Context) error {
	tx.mu.Lock()
	if tx.state != StateActive {
		tx.mu.Unlock()
		return kverrors.ErrTxnNotActive
	}
	tx.state = StatePreparing
	reads := make(map[string]uint64, len(tx.readSet))
	for k, v := range tx.readSet {
		reads[k] = v
	}
	writes := make(map[string][]byte, len(tx.writeSet))
	for k, v := range tx.writeSet {
		writes[k] = v
	}
	deletes := make(map[string]struct{}, len(tx.deleteSet))
	for k := range tx.deleteSet {
		deletes[k] = struct{}{}
	}
	tx.mu.Unlock()

	if tx.Isolation != ReadCommitted {
		touched := make(map[string]uint64, len(reads)+len(writes)+len(deletes))
		for k, v := range reads {
			touched[k] = v
		}
		for k := range writes {
			touched[k] = tx.StartTS
		}
		for k := range deletes {
			touched[k] = tx.StartTS
		}
		if !m.validateNoConflict(touched, tx.StartTS) {
			m.Abort(tx)
			return kverrors.ErrVersionConflict
		}
	}

	commitTS := m.mvcc.NextTimestamp()
	for k, v := range writes {
		m.mvcc.Write(k, v, tx.ID, commitTS)
	}
	for k := range deletes {
		m.mvcc.Remove(k, tx.ID, commitTS)
	}
	m.mvcc.CommitTransaction(tx.ID, commitTS)

	tx.mu.Lock()
	tx.state = StateCommitted
	tx.commitTS = commitTS
	tx.mu.Unlock()

	m.locks.ReleaseAll(tx.ID)
	m.txnsMu.Lock()
	delete(m.txns, tx.ID)
	m.txnsMu.Unlock()
	return nil
}

// validateNoConflict checks that none of the given keys (Commit passes
// every key tx read, wrote or deleted) has a version committed after
// startTS, i.e. no write-write conflict against commit_ts > start_ts as
// §4.11 requires.
func (m *Manager) validateNoConflict(reads map[string]uint64, startTS uint64) bool {
	for k := range reads {
		if commitTS := m.mvcc.LatestCommitTS(k); commitTS > startTS {
			return false
		}
	}
	return true
}

// Abort discards tx's write/delete sets and releases its locks.
func (m *Manager) Abort(tx *Context) error {
	tx.mu.Lock()
	if tx.state == StateCommitted || tx.state == StateAborted {
		tx.mu.Unlock()
		return nil
	}
	tx.state = StateAborted
	tx.mu.Unlock()

	m.mvcc.AbortTransaction(tx.ID)
	m.locks.ReleaseAll(tx.ID)

	m.txnsMu.Lock()
	delete(m.txns, tx.ID)
	m.txnsMu.Unlock()
	return nil
}
