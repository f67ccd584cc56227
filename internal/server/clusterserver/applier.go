package clusterserver

import (
	"github.com/ordkv/ordkv/internal/kv/engine"
	"github.com/ordkv/ordkv/internal/kv/twopc"
)

// EngineApplier applies a prepared 2PC branch's operations directly to
// the local embedded engine, making it a twopc.Applier (C15 <-> C10
// integration) for the participant owning this shard's data.
type EngineApplier struct {
	eng *engine.Engine
}

// NewEngineApplier wraps eng as a twopc.Applier.
func NewEngineApplier(eng *engine.Engine) *EngineApplier {
	return &EngineApplier{eng: eng}
}

// Apply implements twopc.Applier.
func (a *EngineApplier) Apply(ops []twopc.Operation) error {
	for _, op := range ops {
		if op.Delete {
			if err := a.eng.Del([]byte(op.Key)); err != nil {
				return err
			}
			continue
		}
		if err := a.eng.Put([]byte(op.Key), op.Value); err != nil {
			return err
		}
	}
	return nil
}
