package twopc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ordkv/ordkv/internal/kverrors"
)

// ParticipantState is a participant branch's local lifecycle.
type ParticipantState int

const (
	ParticipantActive ParticipantState = iota
	ParticipantPrepared
	ParticipantCommitted
	ParticipantAborted
	ParticipantTimeout
	ParticipantFailed
)

func (s ParticipantState) String() string {
	switch s {
	case ParticipantActive:
		return "ACTIVE"
	case ParticipantPrepared:
		return "PREPARED"
	case ParticipantCommitted:
		return "COMMITTED"
	case ParticipantAborted:
		return "ABORTED"
	case ParticipantTimeout:
		return "TIMEOUT"
	default:
		return "FAILED"
	}
}

// Applier performs a branch's operations against local storage; the
// owning server wires this to the KV engine (Put/Delete).
type Applier interface {
	Apply(ops []Operation) error
}

type branch struct {
	state    ParticipantState
	ops      []Operation
	preparedAt time.Time
}

// ParticipantManager is the local participant side of 2PC: it answers
// a remote coordinator's PREPARE/COMMIT/ABORT and tracks in-doubt
// branches until a decision arrives, per §4.13. A branch left PREPARED
// past InDoubtTimeout is reported by InDoubtTxns and RunTimeoutChecker;
// nothing in this package resolves it.
type ParticipantManager struct {
	applier        Applier
	inDoubtTimeout time.Duration

	mu       sync.Mutex
	branches map[string]*branch // txnID -> branch
}

// NewParticipantManager returns a manager applying prepared operations
// through applier.
func NewParticipantManager(applier Applier, inDoubtTimeout time.Duration) *ParticipantManager {
	if inDoubtTimeout == 0 {
		inDoubtTimeout = 30 * time.Second
	}
	return &ParticipantManager{
		applier:        applier,
		inDoubtTimeout: inDoubtTimeout,
		branches:       make(map[string]*branch),
	}
}

// Prepare validates and stages ops for txnID, answering PREPARE_OK
// (nil) or PREPARE_ABORT (error). Staged operations are not visible
// until Commit.
func (m *ParticipantManager) Prepare(_ context.Context, txnID string, ops []Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.branches[txnID]; ok && b.state != ParticipantActive {
		return fmt.Errorf("twopc: participant: txn %s already %s", txnID, b.state)
	}
	m.branches[txnID] = &branch{state: ParticipantPrepared, ops: ops, preparedAt: time.Now()}
	return nil
}

// Commit applies a previously prepared branch's operations and
// transitions it to COMMITTED.
func (m *ParticipantManager) Commit(_ context.Context, txnID string) error {
	m.mu.Lock()
	b, ok := m.branches[txnID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("twopc: participant: unknown txn %s", txnID)
	}
	if err := m.applier.Apply(b.ops); err != nil {
		m.mu.Lock()
		b.state = ParticipantFailed
		m.mu.Unlock()
		return fmt.Errorf("twopc: apply committed branch: %w", err)
	}
	m.mu.Lock()
	b.state = ParticipantCommitted
	m.mu.Unlock()
	return nil
}

// Abort discards a branch's staged operations and transitions it to
// ABORTED.
func (m *ParticipantManager) Abort(_ context.Context, txnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[txnID]
	if !ok {
		m.branches[txnID] = &branch{state: ParticipantAborted}
		return nil
	}
	b.state = ParticipantAborted
	return nil
}

// State reports the current local state of a branch, ParticipantActive
// if never seen.
func (m *ParticipantManager) State(txnID string) ParticipantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[txnID]
	if !ok {
		return ParticipantActive
	}
	return b.state
}

// InDoubtTxns returns the IDs of branches PREPARED longer than
// InDoubtTimeout without a coordinator decision.
func (m *ParticipantManager) InDoubtTxns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, b := range m.branches {
		if b.state == ParticipantPrepared && time.Since(b.preparedAt) > m.inDoubtTimeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// RunTimeoutChecker checks every interval for branches stuck PREPARED
// past InDoubtTimeout and sends an error wrapping kverrors.ErrInDoubt
// for each on the returned channel (buffered to one; a report that
// finds it full is dropped). Branch states are left unchanged. It runs
// until ctx is canceled, then closes the channel.
func (m *ParticipantManager) RunTimeoutChecker(ctx context.Context, interval time.Duration) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range m.InDoubtTxns() {
					select {
					case out <- fmt.Errorf("twopc: txn %s: %w", id, kverrors.ErrInDoubt):
					default:
					}
				}
			}
		}
	}()
	return out
}
