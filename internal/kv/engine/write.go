package engine

import (
	"fmt"

	"github.com/ordkv/ordkv/internal/kv/memtable"
	"github.com/ordkv/ordkv/internal/kv/wal"
)

// Put durably writes key=value, returning once the WAL append and
// MemTable apply both complete (§4.8 write path).
func (e *Engine) Put(key, value []byte) error {
	return e.write(wal.OpTypePut, key, value)
}

// Del durably writes a tombstone for key.
func (e *Engine) Del(key []byte) error {
	return e.write(wal.OpTypeDel, key, nil)
}

func (e *Engine) write(op wal.OpType, key, value []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	seq := e.globalSeq.Add(1)

	var rec wal.Record
	if op == wal.OpTypeDel {
		rec = wal.NewDel(key, seq)
	} else {
		rec = wal.NewPut(key, value, seq)
	}
	if err := e.walWriter.Append(rec); err != nil {
		return fmt.Errorf("engine: wal append: %w", err)
	}

	e.tablesMu.RLock()
	active := e.active
	e.tablesMu.RUnlock()

	if op == wal.OpTypeDel {
		active.Del(key, seq)
	} else {
		active.Put(key, value, seq)
	}
	e.gate.BeginWrite()

	if active.ApproxBytes() > e.cfg.MemTableBytesThreshold {
		e.rotateMemTable(active)
	}
	return nil
}

// rotateMemTable seals the active table, enqueues it for flush, and
// installs a fresh active table. Must be called with writeMu held.
func (e *Engine) rotateMemTable(old *memtable.MemTable) {
	e.tablesMu.Lock()
	if e.active == old {
		old.Seal()
		e.immutable = append(e.immutable, old)
		e.active = memtable.New()
	}
	e.tablesMu.Unlock()

	select {
	case e.flushCh <- struct{}{}:
	default:
	}
}
