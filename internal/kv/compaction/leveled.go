package compaction

import (
	"github.com/ordkv/ordkv/internal/kv/sstable"
	"github.com/ordkv/ordkv/internal/kv/version"
)

// Leveled scores each level and compacts the highest-scoring one above
// 1.0: L0.score = file_count/L0FileCountCap, Lk.score = bytes/cap_k.
type Leveled struct{}

func (Leveled) scores(levels map[int][]sstable.Meta) map[int]float64 {
	out := make(map[int]float64, len(levels))
	for l, metas := range levels {
		if l == 0 {
			out[l] = float64(len(metas)) / float64(version.L0FileCountCap)
			continue
		}
		out[l] = float64(totalSize(metas)) / float64(version.LevelSizeCap(l))
	}
	return out
}

func (s Leveled) NeedsCompaction(levels map[int][]sstable.Meta) bool {
	for _, score := range s.scores(levels) {
		if score > 1.0 {
			return true
		}
	}
	return false
}

func (s Leveled) PickCompaction(levels map[int][]sstable.Meta) *Task {
	scores := s.scores(levels)

	best := -1
	var bestScore float64
	for l, score := range scores {
		if score > 1.0 && (best == -1 || score > bestScore) {
			best = l
			bestScore = score
		}
	}
	if best == -1 {
		return nil
	}

	target := best + 1
	var inputs []sstable.Meta
	if best == 0 {
		inputs = append(inputs, levels[0]...)
	} else {
		inputs = append(inputs, oldestByFileID(levels[best]))
	}

	lo, hi := keyRange(inputs)
	overlapping := version.Overlapping(levels[target], lo, hi)

	task := &Task{
		SourceLevel:         best,
		TargetLevel:         target,
		Inputs:              inputs,
		Overlapping:         overlapping,
		EstimatedOutputSize: totalSize(inputs) + totalSize(overlapping),
	}
	task.Priority = priority(task)
	return task
}
