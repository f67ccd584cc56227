package engine

import "github.com/ordkv/ordkv/internal/kv/compaction"

// Stats is a point-in-time snapshot of engine health, returned to the
// STATS command at the external interface seam.
type Stats struct {
	Seq              uint64
	MemTableBytes    int64
	ImmutableCount   int
	CacheHitRate     float64
	CacheBlocks      int
	ActiveSnapshots  bool
	MinActiveSeq     uint64
	CompactionMode   string
}

// Stats reports point-in-time engine health.
func (e *Engine) Stats() Stats {
	e.tablesMu.RLock()
	memBytes := e.active.Size()
	immutable := len(e.immutable)
	e.tablesMu.RUnlock()

	return Stats{
		Seq:             e.globalSeq.Load(),
		MemTableBytes:   memBytes,
		ImmutableCount:  immutable,
		CacheHitRate:    e.cache.HitRate(),
		CacheBlocks:     e.cache.Len(),
		ActiveSnapshots: e.snapshots.Active(),
		MinActiveSeq:    e.snapshots.MinActive(),
		CompactionMode:  strategyName(e.currentStrategy()),
	}
}

func strategyName(s compaction.Strategy) string {
	switch s.(type) {
	case compaction.Leveled:
		return "LEVELED"
	case compaction.Tiered:
		return "TIERED"
	case compaction.SizeTiered:
		return "SIZE_TIERED"
	case compaction.TimeWindow:
		return "TIME_WINDOW"
	default:
		return "UNKNOWN"
	}
}

// LevelStats is a single level's file membership and total byte size,
// returned to the LSM command.
type LevelStats struct {
	Level int
	Files int
	Bytes int64
}

// LSMStats reports per-level file and byte counts across the version
// set, in level order.
func (e *Engine) LSMStats() []LevelStats {
	levels := e.versions.AllLevels()
	out := make([]LevelStats, 0, len(levels))
	for l := 0; l <= e.versions.MaxLevel(); l++ {
		files := levels[l]
		if len(files) == 0 {
			continue
		}
		out = append(out, LevelStats{Level: l, Files: len(files), Bytes: e.versions.LevelBytes(l)})
	}
	return out
}
