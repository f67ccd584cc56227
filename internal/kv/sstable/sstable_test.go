package sstable

import (
	"path/filepath"
	"testing"

	"github.com/ordkv/ordkv/internal/kv/internalkey"
)

func buildSST(t *testing.T, dir string, pairs []Record) Meta {
	t.Helper()
	w, err := NewWriter(filepath.Join(dir, "sstable_1.dat"), len(pairs), false)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, p := range pairs {
		if err := w.Add(p.Key, p.Value); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	meta, err := w.Finish(1)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return meta
}

func TestWriterReaderGet(t *testing.T) {
	dir := t.TempDir()
	pairs := []Record{
		{Key: internalkey.Key{UserKey: []byte("a"), Seq: 2, Kind: internalkey.KindPut}, Value: []byte("a2")},
		{Key: internalkey.Key{UserKey: []byte("a"), Seq: 1, Kind: internalkey.KindPut}, Value: []byte("a1")},
		{Key: internalkey.Key{UserKey: []byte("b"), Seq: 3, Kind: internalkey.KindDel}},
		{Key: internalkey.Key{UserKey: []byte("c"), Seq: 4, Kind: internalkey.KindPut}, Value: []byte("c4")},
	}
	meta := buildSST(t, dir, pairs)

	r, err := Open(meta, false, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if v, found, tomb, err := r.Get([]byte("a"), 10); err != nil || !found || tomb || string(v) != "a2" {
		t.Errorf("get a@10 = %v %v %v %v", v, found, tomb, err)
	}
	if v, found, tomb, err := r.Get([]byte("a"), 1); err != nil || !found || tomb || string(v) != "a1" {
		t.Errorf("get a@1 = %v %v %v %v", v, found, tomb, err)
	}
	if _, found, tomb, err := r.Get([]byte("b"), 10); err != nil || found || !tomb {
		t.Errorf("get b@10 = found=%v tomb=%v err=%v", found, tomb, err)
	}
	if _, found, _, err := r.Get([]byte("zzz"), 10); err != nil || found {
		t.Errorf("get missing = found=%v err=%v", found, err)
	}
}

func TestScanAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	pairs := []Record{
		{Key: internalkey.Key{UserKey: []byte("a"), Seq: 2, Kind: internalkey.KindPut}, Value: []byte("a2")},
		{Key: internalkey.Key{UserKey: []byte("b"), Seq: 1, Kind: internalkey.KindPut}, Value: []byte("b1")},
	}
	meta := buildSST(t, dir, pairs)

	r, err := Open(meta, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := r.ScanAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || string(got[0].Key.UserKey) != "a" || string(got[1].Key.UserKey) != "b" {
		t.Fatalf("ScanAll = %+v", got)
	}
}

func TestBlockBoundaryKeys(t *testing.T) {
	dir := t.TempDir()
	f, err := NewWriter(filepath.Join(dir, "sstable_2.dat"), 1000, false)
	if err != nil {
		t.Fatal(err)
	}
	f.blockSize = 64 // force many small blocks
	for c := byte('a'); c <= 'z'; c++ {
		for seq := uint64(3); seq >= 1; seq-- {
			k := internalkey.Key{UserKey: []byte{c}, Seq: seq, Kind: internalkey.KindPut}
			if err := f.Add(k, []byte("v")); err != nil {
				t.Fatal(err)
			}
		}
	}
	meta, err := f.Finish(2)
	if err != nil {
		t.Fatal(err)
	}

	r, err := Open(meta, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if v, found, _, err := r.Get([]byte("a"), 1000); err != nil || !found || string(v) != "v" {
		t.Errorf("boundary get failed: %v %v %v", v, found, err)
	}
}
