package compaction

import "github.com/ordkv/ordkv/internal/kv/sstable"

// DefaultMaxFilesPerTier is the default tiered-strategy threshold (§4.7).
const DefaultMaxFilesPerTier = 4

// Tiered merges all files of the fullest level, in place on that level,
// once any level reaches MaxFilesPerTier files.
type Tiered struct {
	MaxFilesPerTier int
}

// NewTiered returns a Tiered strategy with the default threshold.
func NewTiered() Tiered { return Tiered{MaxFilesPerTier: DefaultMaxFilesPerTier} }

func (s Tiered) threshold() int {
	if s.MaxFilesPerTier <= 0 {
		return DefaultMaxFilesPerTier
	}
	return s.MaxFilesPerTier
}

func (s Tiered) fullestLevel(levels map[int][]sstable.Meta) (level int, found bool) {
	best := -1
	bestCount := 0
	for l, metas := range levels {
		if len(metas) >= s.threshold() && len(metas) > bestCount {
			best = l
			bestCount = len(metas)
		}
	}
	return best, best != -1
}

func (s Tiered) NeedsCompaction(levels map[int][]sstable.Meta) bool {
	_, found := s.fullestLevel(levels)
	return found
}

func (s Tiered) PickCompaction(levels map[int][]sstable.Meta) *Task {
	level, found := s.fullestLevel(levels)
	if !found {
		return nil
	}
	inputs := append([]sstable.Meta(nil), levels[level]...)
	task := &Task{
		SourceLevel:         level,
		TargetLevel:         level,
		Inputs:              inputs,
		EstimatedOutputSize: totalSize(inputs),
	}
	task.Priority = priority(task)
	return task
}
