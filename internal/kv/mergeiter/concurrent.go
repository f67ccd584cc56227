package mergeiter

import "sync/atomic"

// WriteGate is the engine-wide reader/writer discipline (C8): an atomic
// write epoch, bumped by the write path through BeginWrite; every
// ConcurrentIter operation first checks whether the epoch has moved
// since the iterator opened. No lock is taken on either side.
type WriteGate struct {
	epoch atomic.Uint64
}

// NewWriteGate returns a gate at epoch 0.
func NewWriteGate() *WriteGate { return &WriteGate{} }

// BeginWrite bumps the epoch, invalidating every ConcurrentIter created
// before this call. Call after the write has been durably applied to
// the version set.
func (g *WriteGate) BeginWrite() { g.epoch.Add(1) }

func (g *WriteGate) currentEpoch() uint64 { return g.epoch.Load() }

// ConcurrentIter wraps a MergeIterator and enforces the gate: once the
// gate's epoch advances past the epoch this iterator was opened at,
// Valid/Key/Value observe invalidation and stop producing entries,
// forcing the caller to open a fresh iterator over the new version.
type ConcurrentIter struct {
	gate      *WriteGate
	openEpoch uint64
	inner     *MergeIterator
	invalid   bool
}

// NewConcurrentIter wraps inner, pinning it to the gate's epoch at
// construction time.
func NewConcurrentIter(gate *WriteGate, inner *MergeIterator) *ConcurrentIter {
	return &ConcurrentIter{gate: gate, openEpoch: gate.currentEpoch(), inner: inner}
}

func (c *ConcurrentIter) checkInvalidated() bool {
	if c.invalid {
		return true
	}
	if c.gate.currentEpoch() != c.openEpoch {
		c.invalid = true
	}
	return c.invalid
}

// Valid reports whether the iterator still points at a live entry; a
// write to the engine after this iterator opened makes it permanently
// invalid.
func (c *ConcurrentIter) Valid() bool {
	if c.checkInvalidated() {
		return false
	}
	return c.inner.Valid()
}

// Key returns the current user_key, or nil once invalidated or
// exhausted.
func (c *ConcurrentIter) Key() []byte {
	if c.checkInvalidated() || !c.inner.Valid() {
		return nil
	}
	return c.inner.Key()
}

// Value returns the current value, or nil once invalidated or
// exhausted.
func (c *ConcurrentIter) Value() []byte {
	if c.checkInvalidated() || !c.inner.Valid() {
		return nil
	}
	return c.inner.Value()
}

// Next advances the wrapped iterator, a no-op once invalidated.
func (c *ConcurrentIter) Next() {
	if c.checkInvalidated() {
		return
	}
	c.inner.Next()
}
