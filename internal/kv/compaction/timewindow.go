package compaction

import "github.com/ordkv/ordkv/internal/kv/sstable"

// DefaultWindowSize buckets this many consecutive fileIds into one time
// window; DefaultMaxFilesPerWindow is the compaction trigger (§4.7).
const (
	DefaultWindowSize        = 16
	DefaultMaxFilesPerWindow = 4
)

// TimeWindow groups files within a level by the window their fileId
// falls into (fileIds are assigned monotonically by the engine, so this
// approximates grouping by write time) and compacts any window whose
// file count exceeds MaxFilesPerWindow.
type TimeWindow struct {
	WindowSize        uint64
	MaxFilesPerWindow int
}

// NewTimeWindow returns a TimeWindow strategy with default thresholds.
func NewTimeWindow() TimeWindow {
	return TimeWindow{WindowSize: DefaultWindowSize, MaxFilesPerWindow: DefaultMaxFilesPerWindow}
}

func (s TimeWindow) windowSize() uint64 {
	if s.WindowSize == 0 {
		return DefaultWindowSize
	}
	return s.WindowSize
}

func (s TimeWindow) maxFilesPerWindow() int {
	if s.MaxFilesPerWindow <= 0 {
		return DefaultMaxFilesPerWindow
	}
	return s.MaxFilesPerWindow
}

func (s TimeWindow) window(fileID uint64) uint64 { return fileID / s.windowSize() }

func (s TimeWindow) groupByWindow(metas []sstable.Meta) map[uint64][]sstable.Meta {
	groups := make(map[uint64][]sstable.Meta)
	for _, m := range metas {
		w := s.window(m.FileID)
		groups[w] = append(groups[w], m)
	}
	return groups
}

func (s TimeWindow) overfullWindow(levels map[int][]sstable.Meta) (level int, group []sstable.Meta, found bool) {
	for l, metas := range levels {
		for _, g := range s.groupByWindow(metas) {
			if len(g) > s.maxFilesPerWindow() {
				return l, g, true
			}
		}
	}
	return 0, nil, false
}

func (s TimeWindow) NeedsCompaction(levels map[int][]sstable.Meta) bool {
	_, _, found := s.overfullWindow(levels)
	return found
}

func (s TimeWindow) PickCompaction(levels map[int][]sstable.Meta) *Task {
	level, group, found := s.overfullWindow(levels)
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
