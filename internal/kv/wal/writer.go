package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePrefix and FileExtension name WAL segment files: <dir>/wal-<n>.log.
const (
	FilePrefix    = "wal-"
	FileExtension = ".log"

	DefaultMaxSegmentBytes int64 = 64 << 20
)

// SyncPolicy selects how the writer forces durability before a mutation
// is allowed to become visible.
type SyncPolicy string

const (
	// SyncPerOp fsyncs after every Append; the default per spec.md §4.1.
	SyncPerOp SyncPolicy = "per_op"
	// SyncGroupCommit batches fsyncs every GroupCommitInterval.
	SyncGroupCommit SyncPolicy = "group_commit"
)

// Config configures the WAL writer.
type Config struct {
	Dir                 string
	SyncPolicy          SyncPolicy
	GroupCommitInterval time.Duration
	MaxSegmentBytes      int64
}

// DefaultConfig returns the spec default: per-op fsync.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                 dir,
		SyncPolicy:          SyncPerOp,
		GroupCommitInterval: 5 * time.Millisecond,
		MaxSegmentBytes:      DefaultMaxSegmentBytes,
	}
}

// Writer appends records to the active WAL segment.
type Writer struct {
	cfg Config

	mu        sync.Mutex
	file      *os.File
	segIndex  int
	segBytes  int64
	offset    uint64 // count of records appended through this Writer; starts at 0 on open

	pendingSync bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWriter opens (or creates) the active segment in cfg.Dir, resuming
// at the highest existing segment index.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: dir is required")
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}

	segs, err := ListSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	idx := 0
	if len(segs) > 0 {
		idx = segs[len(segs)-1]
	}

	path := SegmentPath(cfg.Dir, idx)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{
		cfg:      cfg,
		file:     f,
		segIndex: idx,
		segBytes: st.Size(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if cfg.SyncPolicy == SyncGroupCommit {
		go w.groupCommitLoop()
	} else {
		close(w.doneCh)
	}

	return w, nil
}

// SegmentPath returns the path of segment idx within dir.
func SegmentPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d%s", FilePrefix, idx, FileExtension))
}

// ListSegments returns the sorted segment indices present in dir.
func ListSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: read dir: %w", err)
	}

	var idxs []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) <= len(FilePrefix)+len(FileExtension) {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(name, FilePrefix+"%d"+FileExtension, &n); err == nil {
			idxs = append(idxs, n)
		}
	}
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && idxs[j-1] > idxs[j]; j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
	return idxs, nil
}

// Append durably appends r per the writer's sync policy, rotating to a
// new segment if the active one has grown past MaxSegmentBytes.
func (w *Writer) Append(r Record) error {
	frame := encodeFrame(r)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.segBytes+int64(len(frame)) > w.cfg.MaxSegmentBytes {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.file.Write(frame)
	if err != nil {
		return fmt.Errorf("wal: write: %w", err)
	}
	w.segBytes += int64(n)
	w.offset++

	switch w.cfg.SyncPolicy {
	case SyncGroupCommit:
		w.pendingSync = true
	default:
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: fsync: %w", err)
		}
	}

	return nil
}

func (w *Writer) rotateLocked() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync before rotate: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close segment: %w", err)
	}

	w.segIndex++
	path := SegmentPath(w.cfg.Dir, w.segIndex)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("wal: open new segment: %w", err)
	}
	w.file = f
	w.segBytes = 0
	return nil
}

func (w *Writer) groupCommitLoop() {
	defer close(w.doneCh)
	t := time.NewTicker(w.cfg.GroupCommitInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			w.mu.Lock()
			if w.pendingSync {
				w.file.Sync()
				w.pendingSync = false
			}
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// CurrentOffset returns the count of records appended through this
// Writer; records already in the log when it was opened are not counted.
func (w *Writer) CurrentOffset() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// Size returns the total bytes occupied by the active segment.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.segBytes
}

// TruncateThrough removes every non-active segment whose highest seq is
// <= seq: the portion of the log a flush has made fully redundant.
// Segments straddling seq (holding both flushed and not-yet-flushed
// records) are left in place, since WAL segments do not align with
// MemTable boundaries.
func (w *Writer) TruncateThrough(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	maxSeqs, err := ScanSegmentMaxSeqs(w.cfg.Dir)
	if err != nil {
		return err
	}
	for idx, segMax := range maxSeqs {
		if idx == w.segIndex {
			continue
		}
		if segMax <= seq {
			os.Remove(SegmentPath(w.cfg.Dir, idx))
		}
	}
	return nil
}

// Close syncs and closes the active segment.
func (w *Writer) Close() error {
	if w.cfg.SyncPolicy == SyncGroupCommit {
		close(w.stopCh)
		<-w.doneCh
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: final fsync: %w", err)
	}
	return w.file.Close()
}
