package version

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ordkv/ordkv/internal/kv/sstable"
)

// Default per-level size targets, growing geometrically (§3 Data Model).
const (
	L0FileCountCap = 4
	BaseLevelBytes = 10 << 20 // 10MB
	LevelMultiplier = 10
)

// Set is the in-memory, mutex-protected version set: the current
// membership of every level, mutated only through Install under the
// engine's write/compaction gate and durably reflected in the MANIFEST.
type Set struct {
	mu       sync.RWMutex
	dataDir  string
	levels   map[int][]sstable.Meta
	maxLevel int
	onWarn   func(format string, args ...any)
}

// Open replays the MANIFEST in dataDir and returns the resulting Set.
func Open(dataDir string, warn func(format string, args ...any)) (*Set, error) {
	levels, err := ReplayManifest(dataDir, warn)
	if err != nil {
		return nil, err
	}
	s := &Set{dataDir: dataDir, levels: levels, onWarn: warn}
	for l := range levels {
		if l > s.maxLevel {
			s.maxLevel = l
		}
	}
	s.sortLeveled()
	return s, nil
}

// sortLeveled sorts L1+ files by MinKey, the leveled-strategy invariant
// that files on Lk, k>=1 are non-overlapping and sorted (§3).
func (s *Set) sortLeveled() {
	for l, metas := range s.levels {
		if l == 0 {
			continue
		}
		sort.Slice(metas, func(i, j int) bool {
			return string(metas[i].MinKey) < string(metas[j].MinKey)
		})
	}
}

// Files returns a snapshot copy of level l's file metadata.
func (s *Set) Files(l int) []sstable.Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sstable.Meta, len(s.levels[l]))
	copy(out, s.levels[l])
	return out
}

// AllLevels returns a snapshot copy of every populated level.
func (s *Set) AllLevels() map[int][]sstable.Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]sstable.Meta, len(s.levels))
	for l, metas := range s.levels {
		cp := make([]sstable.Meta, len(metas))
		copy(cp, metas)
		out[l] = cp
	}
	return out
}

// MaxLevel returns the highest level currently populated.
func (s *Set) MaxLevel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLevel
}

// MaxFileID returns the highest fileId among every file on disk, or 0 if
// the version set is empty. Callers use this to resume fileId
// allocation across restarts.
func (s *Set) MaxFileID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for _, metas := range s.levels {
		for _, m := range metas {
			if m.FileID > max {
				max = m.FileID
			}
		}
	}
	return max
}

// MaxSeq returns the highest seq recorded in any SST's MaxSeq, or 0 if
// the version set is empty. Callers use this, together with the WAL's
// own replay, to resume the engine's global sequence counter.
func (s *Set) MaxSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	for _, metas := range s.levels {
		for _, m := range metas {
			if m.MaxSeq > max {
				max = m.MaxSeq
			}
		}
	}
	return max
}

// LevelSizeCap returns the byte cap for level l under the leveled
// strategy's geometric growth (§4.7).
func LevelSizeCap(l int) int64 {
	cap := int64(BaseLevelBytes)
	for i := 1; i < l; i++ {
		cap *= LevelMultiplier
	}
	return cap
}

// LevelBytes returns the total size in bytes of level l.
func (s *Set) LevelBytes(l int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, m := range s.levels[l] {
		total += m.Size
	}
	return total
}

// Install atomically appends adds/removes to both the in-memory set and
// the durable MANIFEST (adds first, then removes, as one append batch),
// per §4.8's "append MANIFEST ADDs/DELs atomically".
func (s *Set) Install(adds map[int][]sstable.Meta, removes map[int][]sstable.Meta) error {
	var records []Record
	for level, metas := range adds {
		for _, m := range metas {
			records = append(records, Record{Kind: RecAdd, Level: level, Filename: m.Filename, MinKey: m.MinKey, MaxKey: m.MaxKey, MaxSeq: m.MaxSeq})
		}
	}
	for level, metas := range removes {
		for _, m := range metas {
			records = append(records, Record{Kind: RecDel, Level: level, Filename: m.Filename})
		}
	}
	if len(records) == 0 {
		return nil
	}
	if err := AppendManifest(s.dataDir, records...); err != nil {
		return fmt.Errorf("version: install: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for level, metas := range removes {
		s.levels[level] = removeManyByFilename(s.levels[level], metasFilenames(metas)...)
	}
	for level, metas := range adds {
		s.levels[level] = append(s.levels[level], metas...)
		if level > s.maxLevel {
			s.maxLevel = level
		}
	}
	s.sortLeveled()
	return nil
}

func metasFilenames(metas []sstable.Meta) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Filename
	}
	return out
}

func removeManyByFilename(metas []sstable.Meta, filenames ...string) []sstable.Meta {
	bad := map[string]bool{}
	for _, f := range filenames {
		bad[f] = true
	}
	out := metas[:0]
	for _, m := range metas {
		if !bad[m.Filename] {
			out = append(out, m)
		}
	}
	return out
}

// Overlapping returns the subset of level l's files whose [MinKey,
// MaxKey] range overlaps [lo, hi].
func Overlapping(metas []sstable.Meta, lo, hi []byte) []sstable.Meta {
	var out []sstable.Meta
	for _, m := range metas {
		if rangesOverlap(m.MinKey, m.MaxKey, lo, hi) {
			out = append(out, m)
		}
	}
	return out
}

func rangesOverlap(aLo, aHi, bLo, bHi []byte) bool {
	if bHi != nil && string(aLo) > string(bHi) {
		return false
	}
	if bLo != nil && string(aHi) < string(bLo) {
		return false
	}
	return true
}
