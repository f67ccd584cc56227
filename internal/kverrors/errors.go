// Package kverrors defines the structured error carrier shared by every
// component of ordkv, and the sentinel errors that the engine's public
// surface reduces internal failures to (OK | NotFound | Retry | Fatal).
package kverrors

import (
	"errors"
	"fmt"
)

// DomainError is a business-domain error with a stable code, mirroring
// the carrier used throughout the storage and transaction core.
type DomainError struct {
	Code    string // e.g. "KV-WAL-5001"
	Message string
	Details string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Cause }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new DomainError with the given code and message.
func New(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy carrying additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// Code returns the error code carried by err, if any.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Storage engine errors (WAL/MemTable/SST/Version/Compaction — C1-C9)
// ============================================================================

var (
	ErrWALCorrupt     = New("KV-WAL-5001", "wal record corrupt, truncated on replay")
	ErrWALChecksum    = New("KV-WAL-5002", "wal checksum mismatch")
	ErrSSTChecksum    = New("KV-SST-5001", "sstable checksum mismatch")
	ErrSSTNotFound    = New("KV-SST-4040", "sstable file not found")
	ErrManifestCorrupt = New("KV-MAN-5001", "manifest record references unknown file, dropped")
	ErrEngineClosed   = New("KV-ENG-5030", "engine closed")
	ErrEnginePoisoned = New("KV-ENG-5031", "engine poisoned by a prior fatal error")
	ErrKeyNotFound    = New("KV-ENG-4040", "key not found")
	ErrFlushBackoff   = New("KV-ENG-5032", "flush retrying with backoff")
)

// ============================================================================
// MVCC / transaction errors (C11-C13)
// ============================================================================

var (
	ErrVersionConflict  = New("KV-TXN-4091", "write-write conflict, commit aborted")
	ErrTxnNotActive     = New("KV-TXN-4090", "transaction is not active")
	ErrTxnAborted       = New("KV-TXN-4092", "transaction aborted")
	ErrSnapshotReleased = New("KV-MVCC-4040", "snapshot already released")
)

// ============================================================================
// Lock manager errors (C12)
// ============================================================================

var (
	ErrLockTimeout  = New("KV-LOCK-4080", "lock acquisition timed out")
	ErrDeadlock     = New("KV-LOCK-4081", "deadlock detected, transaction chosen as victim")
	ErrIncompatible = New("KV-LOCK-4082", "lock mode incompatible with existing grants")
)

// ============================================================================
// Raft errors (C14)
// ============================================================================

var (
	ErrNotLeader     = New("KV-RAFT-4091", "not the raft leader")
	ErrRaftTimeout   = New("KV-RAFT-4080", "raft client request timed out")
	ErrStaleTerm     = New("KV-RAFT-4092", "message term is stale")
	ErrLogMismatch   = New("KV-RAFT-4093", "previous log entry mismatch")
)

// ============================================================================
// 2PC errors (C15)
// ============================================================================

var (
	ErrPrepareAborted = New("KV-2PC-4090", "participant responded prepare-abort")
	ErrPrepareTimeout = New("KV-2PC-4080", "prepare phase timed out")
	ErrInDoubt        = New("KV-2PC-5033", "participant is in-doubt, awaiting coordinator decision")
)

// ============================================================================
// Generic
// ============================================================================

var (
	ErrInvalidArgument = New("KV-ARG-1001", "invalid argument")
	ErrNotImplemented  = New("KV-SYS-5010", "not implemented")
)
