package memtable

import "testing"

func TestPutGetSnapshot(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"), 1)
	m.Put([]byte("a"), []byte("2"), 2)
	m.Del([]byte("a"), 3)

	if v, r := m.Get([]byte("a"), 1); r != Found || string(v) != "1" {
		t.Fatalf("snapshot 1: got %v %v, want Found 1", r, v)
	}
	if v, r := m.Get([]byte("a"), 2); r != Found || string(v) != "2" {
		t.Fatalf("snapshot 2: got %v %v, want Found 2", r, v)
	}
	if _, r := m.Get([]byte("a"), 3); r != Tombstone {
		t.Fatalf("snapshot 3: got %v, want Tombstone", r)
	}
	if _, r := m.Get([]byte("missing"), 3); r != Miss {
		t.Fatalf("missing key: got %v, want Miss", r)
	}
}

func TestApproxBytesGrows(t *testing.T) {
	m := New()
	before := m.ApproxBytes()
	m.Put([]byte("key"), []byte("value"), 1)
	if m.ApproxBytes() <= before {
		t.Fatalf("ApproxBytes did not grow: %d -> %d", before, m.ApproxBytes())
	}
}

func TestIterOrder(t *testing.T) {
	m := New()
	m.Put([]byte("b"), []byte("1"), 1)
	m.Put([]byte("a"), []byte("1"), 2)
	m.Put([]byte("a"), []byte("2"), 3)

	entries := m.Iter()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// ascending user_key: a, a, b; within "a" descending seq: 3 then 2.
	if string(entries[0].Key.UserKey) != "a" || entries[0].Key.Seq != 3 {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if string(entries[1].Key.UserKey) != "a" || entries[1].Key.Seq != 2 {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if string(entries[2].Key.UserKey) != "b" {
		t.Errorf("entries[2] = %+v", entries[2])
	}
}
