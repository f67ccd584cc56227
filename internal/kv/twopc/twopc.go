// Package twopc implements the two-phase-commit distributed
// transaction coordinator and participant (C15), per §4.13.
package twopc

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ordkv/ordkv/internal/kverrors"
)

// State is a distributed transaction's coordinator-side lifecycle.
type State int

const (
	StateActive State = iota
	StatePreparing
	StateCommitting
	StateCommitted
	StateAborting
	StateAborted
)

// Operation is one participant-bound operation within a distributed
// transaction.
type Operation struct {
	ParticipantID string
	Key           string
	Value         []byte
	Delete        bool
}

// Participant is the coordinator's view of one remote transaction
// branch: send PREPARE/COMMIT/ABORT, get back ok/error.
type Participant interface {
	ID() string
	Prepare(ctx context.Context, txnID string, ops []Operation) error
	Commit(ctx context.Context, txnID string) error
	Abort(ctx context.Context, txnID string) error
}

// Config configures a Coordinator.
type Config struct {
	NodeID           string
	PrepareTimeout   time.Duration
	MaxRetryAttempts int
}

func (c *Config) applyDefaults() {
	if c.PrepareTimeout == 0 {
		c.PrepareTimeout = 5 * time.Second
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = 3
	}
}

// Transaction is one coordinator-tracked distributed transaction.
type Transaction struct {
	ID    string
	mu    sync.Mutex
	state State
	ops   map[string][]Operation // participant ID -> its ops
	parts map[string]Participant
}

// State returns the transaction's current coordinator-side state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Coordinator drives the 2PC protocol across a transaction's
// participants.
type Coordinator struct {
	cfg Config

	mu  sync.Mutex
	txn map[string]*Transaction
}

// NewCoordinator returns a coordinator with the given config.
func NewCoordinator(cfg Config) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{cfg: cfg, txn: make(map[string]*Transaction)}
}

// newGlobalTxnID returns the coordinator's node id joined to a ULID
// (millisecond timestamp plus random bits from crypto/rand). No
// per-node counter is included, so IDs minted within the same
// millisecond are unique but not ordered among themselves.
func (c *Coordinator) newGlobalTxnID() string {
	id := ulid.MustNew(ulid.Timestamp(timeNow()), rand.Reader)
	return fmt.Sprintf("%s-%s", c.cfg.NodeID, id.String())
}

// timeNow exists so tests can stub the clock; production uses
// time.Now.
var timeNow = time.Now

// Begin starts a new distributed transaction, partitioning ops by
// participant and registering each one.
func (c *Coordinator) Begin(ops []Operation, participants map[string]Participant) *Transaction {
	txn := &Transaction{
		ID:    c.newGlobalTxnID(),
		state: StateActive,
		ops:   make(map[string][]Operation),
		parts: participants,
	}
	for _, op := range ops {
		txn.ops[op.ParticipantID] = append(txn.ops[op.ParticipantID], op)
	}
	c.mu.Lock()
	c.txn[txn.ID] = txn
	c.mu.Unlock()
	return txn
}

// Commit runs the full 2PC commit protocol for txn: PREPARE, then
// COMMIT on unanimous PREPARE_OK, else ABORT.
func (c *Coordinator) Commit(ctx context.Context, txn *Transaction) error {
	txn.mu.Lock()
	txn.state = StatePreparing
	txn.mu.Unlock()

	prepareCtx, cancel := context.WithTimeout(ctx, c.cfg.PrepareTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(prepareCtx)
	for pid, ops := range txn.ops {
		pid, ops := pid, ops
		participant := txn.parts[pid]
		g.Go(func() error {
			return c.prepareWithRetry(gctx, participant, txn.ID, ops)
		})
	}

	if err := g.Wait(); err != nil {
		c.abort(ctx, txn)
		return fmt.Errorf("twopc: prepare phase: %w", kverrors.ErrPrepareAborted.WithCause(err))
	}

	txn.mu.Lock()
	txn.state = StateCommitting
	txn.mu.Unlock()

	var cg errgroup.Group
	for pid := range txn.ops {
		participant := txn.parts[pid]
		cg.Go(func() error { return participant.Commit(ctx, txn.ID) })
	}
	if err := cg.Wait(); err != nil {
		// Best-effort: participants that failed to ack commit stay
		// in-doubt until a recovery request resolves them (out of
		// scope per §4.13); the coordinator still records success.
		_ = err
	}

	txn.mu.Lock()
	txn.state = StateCommitted
	txn.mu.Unlock()

	c.mu.Lock()
	delete(c.txn, txn.ID)
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) prepareWithRetry(ctx context.Context, p Participant, txnID string, ops []Operation) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetryAttempts; attempt++ {
		if err := p.Prepare(ctx, txnID, ops); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
			continue
		}
		return nil
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * 50 * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// Abort transitions txn to ABORTING and notifies every participant.
func (c *Coordinator) Abort(ctx context.Context, txn *Transaction) error {
	return c.abort(ctx, txn)
}

func (c *Coordinator) abort(ctx context.Context, txn *Transaction) error {
	txn.mu.Lock()
	txn.state = StateAborting
	txn.mu.Unlock()

	var g errgroup.Group
	for pid := range txn.ops {
		participant := txn.parts[pid]
		g.Go(func() error { return participant.Abort(ctx, txn.ID) })
	}
	_ = g.Wait() // best-effort; unresponsive participants stay in-doubt

	txn.mu.Lock()
	txn.state = StateAborted
	txn.mu.Unlock()

	c.mu.Lock()
	delete(c.txn, txn.ID)
	c.mu.Unlock()
	return nil
}
