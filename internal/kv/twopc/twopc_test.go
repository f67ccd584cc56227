package twopc

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeParticipant struct {
	id        string
	mgr       *ParticipantManager
	failPrepare bool
}

func (p *fakeParticipant) ID() string { return p.id }

func (p *fakeParticipant) Prepare(ctx context.Context, txnID string, ops []Operation) error {
	if p.failPrepare {
		return errors.New("fake: refusing to prepare")
	}
	return p.mgr.Prepare(ctx, txnID, ops)
}

func (p *fakeParticipant) Commit(ctx context.Context, txnID string) error {
	return p.mgr.Commit(ctx, txnID)
}

func (p *fakeParticipant) Abort(ctx context.Context, txnID string) error {
	return p.mgr.Abort(ctx, txnID)
}

type fakeApplier struct {
	applied []Operation
}

func (a *fakeApplier) Apply(ops []Operation) error {
	a.applied = append(a.applied, ops...)
	return nil
}

func TestCommitUnanimousPrepareOK(t *testing.T) {
	applierA := &fakeApplier{}
	applierB := &fakeApplier{}
	mgrA := NewParticipantManager(applierA, time.Minute)
	mgrB := NewParticipantManager(applierB, time.Minute)
	pA := &fakeParticipant{id: "a", mgr: mgrA}
	pB := &fakeParticipant{id: "b", mgr: mgrB}

	coord := NewCoordinator(Config{NodeID: "node-1"})
	ops := []Operation{
		{ParticipantID: "a", Key: "k1", Value: []byte("v1")},
		{ParticipantID: "b", Key: "k2", Delete: true},
	}
	txn := coord.Begin(ops, map[string]Participant{"a": pA, "b": pB})

	if err := coord.Commit(context.Background(), txn); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if txn.State() != StateCommitted {
		t.Fatalf("State = %v, want StateCommitted", txn.State())
	}
	if len(applierA.applied) != 1 || len(applierB.applied) != 1 {
		t.Fatalf("expected each participant to apply exactly one op, got %d and %d", len(applierA.applied), len(applierB.applied))
	}
	if mgrA.State(txn.ID) != ParticipantCommitted || mgrB.State(txn.ID) != ParticipantCommitted {
		t.Fatalf("expected both branches committed, got %v and %v", mgrA.State(txn.ID), mgrB.State(txn.ID))
	}
}

func TestCommitAbortsOnPrepareAbort(t *testing.T) {
	applierA := &fakeApplier{}
	applierB := &fakeApplier{}
	mgrA := NewParticipantManager(applierA, time.Minute)
	mgrB := NewParticipantManager(applierB, time.Minute)
	pA := &fakeParticipant{id: "a", mgr: mgrA}
	pB := &fakeParticipant{id: "b", mgr: mgrB, failPrepare: true}

	coord := NewCoordinator(Config{NodeID: "node-1", MaxRetryAttempts: 1})
	ops := []Operation{
		{ParticipantID: "a", Key: "k1", Value: []byte("v1")},
		{ParticipantID: "b", Key: "k2", Value: []byte("v2")},
	}
	txn := coord.Begin(ops, map[string]Participant{"a": pA, "b": pB})

	err := coord.Commit(context.Background(), txn)
	if err == nil {
		t.Fatal("expected Commit to fail when a participant refuses prepare")
	}
	if txn.State() != StateAborted {
		t.Fatalf("State = %v, want StateAborted", txn.State())
	}
	if len(applierA.applied) != 0 {
		t.Fatalf("expected participant a to apply nothing after abort, got %d ops", len(applierA.applied))
	}
	if mgrA.State(txn.ID) != ParticipantAborted {
		t.Fatalf("expected participant a branch aborted, got %v", mgrA.State(txn.ID))
	}
}

func TestParticipantInDoubtAfterTimeout(t *testing.T) {
	mgr := NewParticipantManager(&fakeApplier{}, 10*time.Millisecond)
	if err := mgr.Prepare(context.Background(), "txn-1", []Operation{{Key: "k"}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	inDoubt := mgr.InDoubtTxns()
	if len(inDoubt) != 1 || inDoubt[0] != "txn-1" {
		t.Fatalf("InDoubtTxns = %v, want [txn-1]", inDoubt)
	}
}

func TestParticipantCommitUnknownTxnFails(t *testing.T) {
	mgr := NewParticipantManager(&fakeApplier{}, time.Minute)
	if err := mgr.Commit(context.Background(), "never-prepared"); err == nil {
		t.Fatal("expected Commit on unknown txn to fail")
	}
}
