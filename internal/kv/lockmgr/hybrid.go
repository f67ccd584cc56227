package lockmgr

import (
	"context"
	"sync"
	"time"
)

// HybridManager combines a PessimisticManager and an OptimisticManager,
// choosing a per-transaction strategy (defaulting to a configurable
// strategy), optionally adapted by a rolling conflict rate, per §4.10.
type HybridManager struct {
	Pessimistic *PessimisticManager
	Optimistic  *OptimisticManager

	strategyMu   sync.Mutex
	perTxn       map[uint64]bool // txn_id -> use_optimistic
	defaultUseOp bool

	adaptive  bool
	threshold float64

	conflictMu    sync.Mutex
	totalTxns     int
	conflictTxns  int
}

// NewHybrid returns a hybrid manager defaulting every transaction to
// the pessimistic strategy unless told otherwise.
func NewHybrid(pessimistic *PessimisticManager, optimistic *OptimisticManager) *HybridManager {
	return &HybridManager{
		Pessimistic: pessimistic,
		Optimistic:  optimistic,
		perTxn:      make(map[uint64]bool),
		threshold:   0.3,
	}
}

// SetStrategyForTransaction pins txnID to the optimistic or pessimistic
// path regardless of the adaptive default.
func (m *HybridManager) SetStrategyForTransaction(txnID uint64, useOptimistic bool) {
	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	m.perTxn[txnID] = useOptimistic
}

// SetDefaultStrategy changes which strategy new transactions get absent
// an explicit per-transaction choice.
func (m *HybridManager) SetDefaultStrategy(useOptimistic bool) {
	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	m.defaultUseOp = useOptimistic
}

// SetConflictThreshold sets the rolling conflict rate above which
// adaptive mode switches the default strategy to pessimistic.
func (m *HybridManager) SetConflictThreshold(threshold float64) {
	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	m.threshold = threshold
}

// EnableAdaptiveStrategy turns the conflict-rate-driven default switch
// on or off.
func (m *HybridManager) EnableAdaptiveStrategy(enable bool) {
	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	m.adaptive = enable
}

// ShouldUseOptimistic reports which strategy txnID should use.
func (m *HybridManager) ShouldUseOptimistic(txnID uint64) bool {
	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	if use, ok := m.perTxn[txnID]; ok {
		return use
	}
	return m.defaultUseOp
}

// UpdateConflictStatistics feeds one transaction's outcome into the
// rolling conflict rate, flipping the adaptive default once the
// threshold is crossed.
func (m *HybridManager) UpdateConflictStatistics(hadConflict bool) {
	m.conflictMu.Lock()
	m.totalTxns++
	if hadConflict {
		m.conflictTxns++
	}
	rate := float64(m.conflictTxns) / float64(m.totalTxns)
	m.conflictMu.Unlock()

	m.strategyMu.Lock()
	defer m.strategyMu.Unlock()
	if m.adaptive {
		m.defaultUseOp = rate <= m.threshold
	}
}

// RunDeadlockDetection delegates to the pessimistic sub-manager, since
// the optimistic path validates at commit and never blocks.
func (m *HybridManager) RunDeadlockDetection(ctx context.Context, interval time.Duration, abort func(txnID uint64)) error {
	return m.Pessimistic.RunDeadlockDetection(ctx, interval, abort)
}
