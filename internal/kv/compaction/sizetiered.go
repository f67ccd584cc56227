package compaction

import (
	"sort"

	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// Default size-tiered thresholds (§4.7).
const (
	DefaultMinThreshold = 4
	DefaultSizeRatio    = 0.5 // cap = 1 + size_ratio = 1.5
)

// SizeTiered merges, on any level with at least MinThreshold files, the
// largest contiguous (by size) group of files whose pairwise size ratio
// stays within 1+SizeRatio.
type SizeTiered struct {
	MinThreshold int
	SizeRatio    float64
}

// NewSizeTiered returns a SizeTiered strategy with default thresholds.
func NewSizeTiered() SizeTiered {
	return SizeTiered{MinThreshold: DefaultMinThreshold, SizeRatio: DefaultSizeRatio}
}

func (s SizeTiered) minThreshold() int {
	if s.MinThreshold <= 0 {
		return DefaultMinThreshold
	}
	return s.MinThreshold
}

func (s SizeTiered) cap() float64 {
	if s.SizeRatio <= 0 {
		return 1 + DefaultSizeRatio
	}
	return 1 + s.SizeRatio
}

// bestGroup returns the largest contiguous (by ascending size) run of
// metas whose max/min size ratio stays within cap.
func (s SizeTiered) bestGroup(metas []sstable.Meta) []sstable.Meta {
	sorted := append([]sstable.Meta(nil), metas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	var best []sstable.Meta
	for i := range sorted {
		if sorted[i].Size <= 0 {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			ratio := float64(sorted[j].Size) / float64(sorted[i].Size)
			if ratio > s.cap() {
				break
			}
			if j-i+1 > len(best) {
				best = sorted[i : j+1]
			}
		}
	}
	return best
}

func (s SizeTiered) qualifyingLevel(levels map[int][]sstable.Meta) (int, []sstable.Meta, bool) {
	for l, metas := range levels {
		if len(metas) < s.minThreshold() {
			continue
		}
		group := s.bestGroup(metas)
		if len(group) >= 2 {
			return l, group, true
		}
	}
	return 0, nil, false
}

func (s SizeTiered) NeedsCompaction(levels map[int][]sstable.Meta) bool {
	_, _, found := s.qualifyingLevel(levels)
	return found
}

func (s SizeTiered) PickCompaction(levels map[int][]sstable.Meta) *Task {
	level, group, found := s.qualifyingLevel(levels)
	if !found {
		return nil
	}
	task := &Task{
		SourceLevel:         level,
		TargetLevel:         level,
		Inputs:              group,
		EstimatedOutputSize: totalSize(group),
	}
	task.Priority = priority(task)
	return task
}
