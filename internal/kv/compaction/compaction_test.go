package compaction

import (
	"testing"

	"github.com/ordkv/ordkv/internal/kv/sstable"
	"github.com/ordkv/ordkv/internal/kv/version"
)

func meta(id uint64, size int64, lo, hi string) sstable.Meta {
	return sstable.Meta{FileID: id, Size: size, MinKey: []byte(lo), MaxKey: []byte(hi)}
}

func TestLeveledNeedsCompactionOnL0Overflow(t *testing.T) {
	s := Leveled{}
	levels := map[int][]sstable.Meta{
		0: {meta(1, 10, "a", "c"), meta(2, 10, "b", "d"), meta(3, 10, "a", "b"), meta(4, 10, "c", "e"), meta(5, 10, "a", "a")},
	}
	if !s.NeedsCompaction(levels) {
		t.Fatal("expected L0 overflow to require compaction")
	}
	task := s.PickCompaction(levels)
	if task == nil || task.SourceLevel != 0 || task.TargetLevel != 1 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(task.Inputs) != 5 {
		t.Errorf("expected all L0 files as inputs, got %d", len(task.Inputs))
	}
}

func TestLeveledNoCompactionUnderThreshold(t *testing.T) {
	s := Leveled{}
	levels := map[int][]sstable.Meta{0: {meta(1, 10, "a", "b")}}
	if s.NeedsCompaction(levels) {
		t.Fatal("expected no compaction needed")
	}
	if s.PickCompaction(levels) != nil {
		t.Fatal("expected nil task")
	}
}

func TestLeveledPicksOldestOnLk(t *testing.T) {
	s := Leveled{}
	bigLevel := version.LevelSizeCap(1) + 1
	levels := map[int][]sstable.Meta{
		1: {meta(5, bigLevel/2, "a", "m"), meta(2, bigLevel/2+1, "n", "z")},
	}
	task := s.PickCompaction(levels)
	if task == nil {
		t.Fatal("expected a task")
	}
	if len(task.Inputs) != 1 || task.Inputs[0].FileID != 2 {
		t.Fatalf("expected oldest fileID (2) picked, got %+v", task.Inputs)
	}
}

func TestTieredMergesFullestLevel(t *testing.T) {
	s := NewTiered()
	levels := map[int][]sstable.Meta{
		0: {meta(1, 1, "a", "b"), meta(2, 1, "a", "b"), meta(3, 1, "a", "b"), meta(4, 1, "a", "b")},
		1: {meta(5, 1, "a", "b")},
	}
	if !s.NeedsCompaction(levels) {
		t.Fatal("expected tiered compaction need")
	}
	task := s.PickCompaction(levels)
	if task == nil || task.SourceLevel != 0 || task.TargetLevel != 0 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(task.Inputs) != 4 {
		t.Errorf("expected 4 inputs, got %d", len(task.Inputs))
	}
}

func TestSizeTieredGroupsSimilarSizes(t *testing.T) {
	s := NewSizeTiered()
	levels := map[int][]sstable.Meta{
		0: {meta(1, 100, "a", "b"), meta(2, 110, "a", "b"), meta(3, 120, "a", "b"), meta(4, 1000, "a", "b")},
	}
	if !s.NeedsCompaction(levels) {
		t.Fatal("expected size-tiered compaction need")
	}
	task := s.PickCompaction(levels)
	if task == nil {
		t.Fatal("expected a task")
	}
	if len(task.Inputs) != 3 {
		t.Errorf("expected the 3 similarly sized files grouped, got %d: %+v", len(task.Inputs), task.Inputs)
	}
}

func TestTimeWindowGroupsByFileIDBucket(t *testing.T) {
	s := NewTimeWindow()
	levels := map[int][]sstable.Meta{
		0: {meta(0, 1, "a", "b"), meta(1, 1, "a", "b"), meta(2, 1, "a", "b"), meta(3, 1, "a", "b"), meta(4, 1, "a", "b")},
	}
	if !s.NeedsCompaction(levels) {
		t.Fatal("expected time-window compaction need")
	}
	task := s.PickCompaction(levels)
	if task == nil || len(task.Inputs) != 5 {
		t.Fatalf("unexpected task: %+v", task)
	}
}
