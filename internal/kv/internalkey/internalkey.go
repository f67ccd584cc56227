// Package internalkey implements the InternalKey triple (user_key, seq,
// kind) and its ordering: ascending user_key, descending seq, so a reader
// seeking user_key at snapshot S finds the newest version with seq <= S
// first.
package internalkey

import "bytes"

// Kind distinguishes a put record from a tombstone.
type Kind uint8

const (
	KindPut Kind = 1
	KindDel Kind = 2
)

func (k Kind) String() string {
	if k == KindDel {
		return "DEL"
	}
	return "PUT"
}

// Key is the logical (user_key, seq, kind) triple used throughout the
// storage engine's MemTable, SSTable and iterator layers.
type Key struct {
	UserKey []byte
	Seq     uint64
	Kind    Kind
}

// Compare orders Keys ascending by UserKey then descending by Seq, so
// that for equal UserKey the newest version sorts first. Ties by Seq
// (which should not occur for distinct writes) fall back to Kind so
// comparisons remain total.
func Compare(a, b Key) int {
	if c := bytes.Compare(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	switch {
	case a.Seq > b.Seq:
		return -1
	case a.Seq < b.Seq:
		return 1
	}
	if a.Kind == b.Kind {
		return 0
	}
	if a.Kind < b.Kind {
		return -1
	}
	return 1
}

// Less reports whether a sorts strictly before b; used as the btree.Less
// implementation for ordered in-memory structures.
func Less(a, b Key) bool { return Compare(a, b) < 0 }

// SameUserKey reports whether a and b share the same logical key.
func SameUserKey(a, b Key) bool { return bytes.Equal(a.UserKey, b.UserKey) }

// Visible reports whether a key with the given seq is visible to a
// reader pinned at snapshotSeq.
func Visible(seq, snapshotSeq uint64) bool { return seq <= snapshotSeq }
