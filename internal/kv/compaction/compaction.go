// Package compaction implements the four pluggable compaction strategies
// (C9): pure functions over level metadata that decide when and which
// SSTs to merge.
package compaction

import (
	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// Task describes one compaction: merge inputs from SourceLevel with the
// Overlapping files already on TargetLevel, producing output on
// TargetLevel.
type Task struct {
	SourceLevel       int
	TargetLevel       int
	Inputs            []sstable.Meta
	Overlapping       []sstable.Meta
	EstimatedOutputSize int64
	Priority          float64
}

// Strategy decides when compaction is needed and which Task to run next.
type Strategy interface {
	NeedsCompaction(levels map[int][]sstable.Meta) bool
	PickCompaction(levels map[int][]sstable.Meta) *Task
}

// priority implements §4.7's tiebreak: higher
// input_count*output_size/(source_level+1) first.
func priority(task *Task) float64 {
	out := float64(len(task.Inputs)) * float64(task.EstimatedOutputSize) / float64(task.SourceLevel+1)
	return out
}

func totalSize(metas []sstable.Meta) int64 {
	var sum int64
	for _, m := range metas {
		sum += m.Size
	}
	return sum
}

func keyRange(metas []sstable.Meta) (lo, hi []byte) {
	for _, m := range metas {
		if lo == nil || string(m.MinKey) < string(lo) {
			lo = m.MinKey
		}
		if hi == nil || string(m.MaxKey) > string(hi) {
			hi = m.MaxKey
		}
	}
	return lo, hi
}

func oldestByFileID(metas []sstable.Meta) sstable.Meta {
	oldest := metas[0]
	for _, m := range metas[1:] {
		if m.FileID < oldest.FileID {
			oldest = m
		}
	}
	return oldest
}
