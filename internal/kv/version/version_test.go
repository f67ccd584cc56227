package version

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ordkv/ordkv/internal/kv/sstable"
)

func TestInstallAndReplay(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sstPath := filepath.Join(dir, "sstable_1.dat")
	if err := os.WriteFile(sstPath, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	meta := sstable.Meta{FileID: 1, Filename: sstPath, MinKey: []byte("a"), MaxKey: []byte("m"), Size: 4}
	if err := s.Install(map[int][]sstable.Meta{0: {meta}}, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if got := s.Files(0); len(got) != 1 || got[0].Filename != sstPath {
		t.Fatalf("Files(0) = %+v", got)
	}

	// Reopen: replay must reconstruct the same state.
	s2, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.Files(0); len(got) != 1 || got[0].Filename != sstPath {
		t.Fatalf("replayed Files(0) = %+v", got)
	}
}

func TestManifestDropsMissingFileWithWarning(t *testing.T) {
	dir := t.TempDir()
	if err := AppendManifest(dir, Record{Kind: RecAdd, Level: 0, Filename: filepathJoin(dir, "ghost.dat"), MinKey: []byte("a"), MaxKey: []byte("z")}); err != nil {
		t.Fatal(err)
	}

	var warned bool
	levels, err := ReplayManifest(dir, func(format string, args ...any) { warned = true })
	if err != nil {
		t.Fatal(err)
	}
	if !warned {
		t.Error("expected warning for missing file")
	}
	if len(levels[0]) != 0 {
		t.Errorf("expected dropped entry, got %+v", levels[0])
	}
}

func TestInstallRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	p1 := filepathJoin(dir, "sstable_1.dat")
	os.WriteFile(p1, []byte("x"), 0o600)
	m1 := sstable.Meta{FileID: 1, Filename: p1, MinKey: []byte("a"), MaxKey: []byte("b")}
	if err := s.Install(map[int][]sstable.Meta{0: {m1}}, nil); err != nil {
		t.Fatal(err)
	}

	p2 := filepathJoin(dir, "sstable_2.dat")
	os.WriteFile(p2, []byte("y"), 0o600)
	m2 := sstable.Meta{FileID: 2, Filename: p2, MinKey: []byte("a"), MaxKey: []byte("b")}
	if err := s.Install(map[int][]sstable.Meta{1: {m2}}, map[int][]sstable.Meta{0: {m1}}); err != nil {
		t.Fatal(err)
	}

	if got := s.Files(0); len(got) != 0 {
		t.Errorf("Files(0) should be empty after compaction, got %+v", got)
	}
	if got := s.Files(1); len(got) != 1 {
		t.Errorf("Files(1) = %+v", got)
	}
}

func filepathJoin(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out = out + string(os.PathSeparator) + p
	}
	return out
}
