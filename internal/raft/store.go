package raft

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// Store is the hand-rolled Raft node's durable state (C14): current
// term, voted-for, and the replicated log, persisted to
// `<data>/raft-state` via bbolt per §6's persisted state layout.
// Persistence happens synchronously before any outgoing RPC depends on
// it, per §4.12.
type Store struct {
	db *bbolt.DB
}

var (
	bucketMeta = []byte("meta")
	bucketLog  = []byte("log")

	keyCurrentTerm = []byte("current_term")
	keyVotedFor    = []byte("voted_for")
)

// OpenStore opens (or creates) the bbolt-backed state file at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("raft: open state store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketLog)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("raft: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (s *Store) Close() error { return s.db.Close() }

// LoadState reads the persisted (current_term, voted_for) pair, both
// zero-value if never written.
func (s *Store) LoadState() (term uint64, votedFor string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keyCurrentTerm); v != nil {
			term = binary.BigEndian.Uint64(v)
		}
		if v := b.Get(keyVotedFor); v != nil {
			votedFor = string(v)
		}
		return nil
	})
	return term, votedFor, err
}

// SaveState durably persists (term, votedFor) before the caller may
// rely on them in an outgoing RPC.
func (s *Store) SaveState(term uint64, votedFor string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], term)
		if err := b.Put(keyCurrentTerm, buf[:]); err != nil {
			return err
		}
		return b.Put(keyVotedFor, []byte(votedFor))
	})
}

// LoadLog replays every persisted log entry in index order.
func (s *Store) LoadLog() ([]LogEntry, error) {
	var entries []LogEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLog)
		return b.ForEach(func(k, v []byte) error {
			var e LogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("raft: decode log entry at index %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// AppendLog persists entries, overwriting any existing entries at the
// same index (used when truncating a conflicting suffix before
// appending the leader's entries).
func (s *Store) AppendLog(entries []LogEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLog)
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], e.Index)
			if err := b.Put(key[:], data); err != nil {
				return err
			}
		}
		return nil
	})
}

// TruncateFrom deletes every persisted log entry with index >= from.
func (s *Store) TruncateFrom(from uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLog)
		c := b.Cursor()
		var start [8]byte
		binary.BigEndian.PutUint64(start[:], from)
		for k, _ := c.Seek(start[:]); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
