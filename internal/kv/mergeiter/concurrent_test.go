package mergeiter

import "testing"

func TestConcurrentIterInvalidatedByWrite(t *testing.T) {
	gate := NewWriteGate()
	src := NewSliceIterator([]Pair{
		{Key: key("a", 1, 1), Value: []byte("1")},
		{Key: key("b", 1, 1), Value: []byte("2")},
	})
	merge := New([]ChildIterator{src}, 10)
	merge.SeekToFirst()

	it := NewConcurrentIter(gate, merge)
	if !it.Valid() {
		t.Fatal("expected valid before any write")
	}
	if string(it.Key()) != "a" {
		t.Fatalf("Key() = %q, want a", it.Key())
	}

	gate.BeginWrite()

	if it.Valid() {
		t.Fatal("expected invalidated after write")
	}
	if it.Key() != nil || it.Value() != nil {
		t.Error("expected nil key/value after invalidation")
	}
}

func TestConcurrentIterSurvivesWithoutWrite(t *testing.T) {
	gate := NewWriteGate()
	src := NewSliceIterator([]Pair{
		{Key: key("a", 1, 1), Value: []byte("1")},
	})
	merge := New([]ChildIterator{src}, 10)
	merge.SeekToFirst()

	it := NewConcurrentIter(gate, merge)
	if !it.Valid() {
		t.Fatal("expected valid")
	}
	it.Next()
	if it.Valid() {
		t.Fatal("expected exhausted, not invalidated")
	}
}
