package mergeiter

import (
	"testing"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
)

func key(uk string, seq uint64, kind internalkey.Kind) internalkey.Key {
	return internalkey.Key{UserKey: []byte(uk), Seq: seq, Kind: kind}
}

func collect(it *MergeIterator) []string {
	var out []string
	for it.Valid() {
		out = append(out, string(it.Key())+"="+string(it.Value()))
		it.Next()
	}
	return out
}

func TestMergeNewestWinsAcrossChildren(t *testing.T) {
	memtable := NewSliceIterator([]Pair{
		{Key: key("a", 3, internalkey.KindPut), Value: []byte("a3")},
		{Key: key("b", 2, internalkey.KindPut), Value: []byte("b2")},
	})
	sst0 := NewSliceIterator([]Pair{
		{Key: key("a", 1, internalkey.KindPut), Value: []byte("a1")},
		{Key: key("c", 4, internalkey.KindPut), Value: []byte("c4")},
	})

	it := New([]ChildIterator{memtable, sst0}, 10)
	it.SeekToFirst()
	got := collect(it)
	want := []string{"a=a3", "b=b2", "c=c4"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeRespectsSnapshotSeq(t *testing.T) {
	memtable := NewSliceIterator([]Pair{
		{Key: key("a", 5, internalkey.KindPut), Value: []byte("a5")},
		{Key: key("a", 2, internalkey.KindPut), Value: []byte("a2")},
	})
	it := New([]ChildIterator{memtable}, 3)
	it.SeekToFirst()
	got := collect(it)
	want := []string{"a=a2"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeSuppressesTombstone(t *testing.T) {
	memtable := NewSliceIterator([]Pair{
		{Key: key("a", 2, internalkey.KindDel)},
		{Key: key("b", 1, internalkey.KindPut), Value: []byte("b1")},
	})
	it := New([]ChildIterator{memtable}, 10)
	it.SeekToFirst()
	got := collect(it)
	want := []string{"b=b1"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergePrefixHaltsEarly(t *testing.T) {
	memtable := NewSliceIterator([]Pair{
		{Key: key("apple", 1, internalkey.KindPut), Value: []byte("1")},
		{Key: key("apricot", 1, internalkey.KindPut), Value: []byte("2")},
		{Key: key("banana", 1, internalkey.KindPut), Value: []byte("3")},
	})
	it := New([]ChildIterator{memtable}, 10)
	it.SeekWithPrefix([]byte("ap"))
	got := collect(it)
	want := []string{"apple=1", "apricot=2"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeSeekPositionsAtTarget(t *testing.T) {
	memtable := NewSliceIterator([]Pair{
		{Key: key("a", 1, internalkey.KindPut), Value: []byte("1")},
		{Key: key("b", 1, internalkey.KindPut), Value: []byte("2")},
		{Key: key("c", 1, internalkey.KindPut), Value: []byte("3")},
	})
	it := New([]ChildIterator{memtable}, 10)
	it.Seek([]byte("b"))
	got := collect(it)
	want := []string{"b=2", "c=3"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
