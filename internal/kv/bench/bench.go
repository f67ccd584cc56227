// Package bench implements a YCSB-style workload generator against an
// embedded engine, grounded on the original kv-db's ycsb_benchmark.
package bench

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ordkv/ordkv/internal/kv/engine"
)

// Workload selects the read/update/insert/scan mix, matching the YCSB
// core workloads A-F.
type Workload string

const (
	WorkloadA Workload = "A" // 50% read, 50% update
	WorkloadB Workload = "B" // 95% read, 5% update
	WorkloadC Workload = "C" // 100% read
	WorkloadD Workload = "D" // 95% read, 5% insert (reads pick a uniformly random preloaded key)
	WorkloadE Workload = "E" // 95% scan, 5% insert
	WorkloadF Workload = "F" // 50% read, 50% read-modify-write
)

// Op names the operation a single request performed, used to key
// Result.OperationCounts.
type Op string

const (
	OpRead           Op = "READ"
	OpUpdate         Op = "UPDATE"
	OpInsert         Op = "INSERT"
	OpScan           Op = "SCAN"
	OpReadModifyWrite Op = "READ_MODIFY_WRITE"
)

// Config parameterizes one benchmark run.
type Config struct {
	Workload       Workload
	RecordCount    int
	OperationCount int
	ThreadCount    int
	KeySize        int
	ValueSize      int
	ScanLength     int
}

// DefaultConfig mirrors the original harness's defaults.
func DefaultConfig() Config {
	return Config{
		Workload:       WorkloadA,
		RecordCount:    1000,
		OperationCount: 1000,
		ThreadCount:    1,
		KeySize:        10,
		ValueSize:      100,
		ScanLength:     10,
	}
}

// Result summarizes one benchmark run.
type Result struct {
	TotalOperations      int
	SuccessfulOperations int
	Duration             time.Duration
	ThroughputOpsPerSec  float64
	AverageLatencyMs     float64
	P95LatencyMs         float64
	P99LatencyMs         float64
	OperationCounts      map[Op]int
}

type sample struct {
	op      Op
	latency time.Duration
	ok      bool
}

// Runner drives a workload against an engine.
type Runner struct {
	eng *engine.Engine
	cfg Config
}

// New returns a Runner with the given configuration against eng.
func New(eng *engine.Engine, cfg Config) *Runner {
	if cfg.ThreadCount <= 0 {
		cfg.ThreadCount = 1
	}
	return &Runner{eng: eng, cfg: cfg}
}

// LoadData preloads Config.RecordCount sequential records before Run.
func (r *Runner) LoadData() error {
	gen := rand.New(rand.NewSource(1))
	for i := 0; i < r.cfg.RecordCount; i++ {
		k := r.key(i)
		if err := r.eng.Put([]byte(k), []byte(r.value(gen))); err != nil {
			return fmt.Errorf("bench: load record %d: %w", i, err)
		}
	}
	return nil
}

// Run executes Config.OperationCount operations across Config.ThreadCount
// workers and returns aggregate latency/throughput statistics.
func (r *Runner) Run() (Result, error) {
	perWorker := r.cfg.OperationCount / r.cfg.ThreadCount
	remainder := r.cfg.OperationCount - perWorker*r.cfg.ThreadCount

	samples := make([]sample, 0, r.cfg.OperationCount)
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < r.cfg.ThreadCount; w++ {
		n := perWorker
		if w == r.cfg.ThreadCount-1 {
			n += remainder
		}
		wg.Add(1)
		go func(workerID, ops int) {
			defer wg.Done()
			gen := rand.New(rand.NewSource(int64(workerID) + 1))
			local := make([]sample, 0, ops)
			for i := 0; i < ops; i++ {
				local = append(local, r.executeOne(gen))
			}
			mu.Lock()
			samples = append(samples, local...)
			mu.Unlock()
		}(w, n)
	}
	wg.Wait()
	elapsed := time.Since(start)

	return analyze(samples, elapsed), nil
}

func (r *Runner) executeOne(gen *rand.Rand) sample {
	op := r.nextOp(gen)
	started := time.Now()
	var ok bool
	switch op {
	case OpRead:
		_, err := r.eng.Get([]byte(r.existingKey(gen)))
		ok = err == nil
	case OpUpdate:
		err := r.eng.Put([]byte(r.existingKey(gen)), []byte(r.value(gen)))
		ok = err == nil
	case OpInsert:
		err := r.eng.Put([]byte(r.newKey(gen)), []byte(r.value(gen)))
		ok = err == nil
	case OpScan:
		ok = r.executeScan(gen)
	case OpReadModifyWrite:
		k := r.existingKey(gen)
		_, err := r.eng.Get([]byte(k))
		if err == nil {
			err = r.eng.Put([]byte(k), []byte(r.value(gen)))
		}
		ok = err == nil
	}
	return sample{op: op, latency: time.Since(started), ok: ok}
}

func (r *Runner) executeScan(gen *rand.Rand) bool {
	lo := r.existingKey(gen)
	it, err := r.eng.NewIterator(r.eng.CurrentSeq(), nil)
	if err != nil {
		return false
	}
	count := 0
	for ; it.Valid() && count < r.cfg.ScanLength; it.Next() {
		if string(it.Key()) < lo {
			continue
		}
		count++
	}
	return true
}

func (r *Runner) nextOp(gen *rand.Rand) Op {
	roll := gen.Float64()
	switch r.cfg.Workload {
	case WorkloadA:
		if roll < 0.5 {
			return OpRead
		}
		return OpUpdate
	case WorkloadB:
		if roll < 0.95 {
			return OpRead
		}
		return OpUpdate
	case WorkloadC:
		return OpRead
	case WorkloadD:
		if roll < 0.95 {
			return OpRead
		}
		return OpInsert
	case WorkloadE:
		if roll < 0.95 {
			return OpScan
		}
		return OpInsert
	case WorkloadF:
		if roll < 0.5 {
			return OpRead
		}
		return OpReadModifyWrite
	default:
		return OpRead
	}
}

func (r *Runner) key(i int) string {
	k := fmt.Sprintf("user%d", i)
	if len(k) < r.cfg.KeySize {
		k += strings.Repeat("0", r.cfg.KeySize-len(k))
	}
	return k
}

func (r *Runner) existingKey(gen *rand.Rand) string {
	if r.cfg.RecordCount <= 0 {
		return r.key(0)
	}
	return r.key(gen.Intn(r.cfg.RecordCount))
}

func (r *Runner) newKey(gen *rand.Rand) string {
	return r.key(r.cfg.RecordCount + gen.Intn(1<<20))
}

func (r *Runner) value(gen *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, r.cfg.ValueSize)
	for i := range b {
		b[i] = alphabet[gen.Intn(len(alphabet))]
	}
	return string(b)
}

func analyze(samples []sample, elapsed time.Duration) Result {
	res := Result{
		TotalOperations: len(samples),
		Duration:        elapsed,
		OperationCounts: make(map[Op]int),
	}
	if len(samples) == 0 {
		return res
	}
	latenciesMs := make([]float64, 0, len(samples))
	for _, s := range samples {
		res.OperationCounts[s.op]++
		if s.ok {
			res.SuccessfulOperations++
		}
		latenciesMs = append(latenciesMs, float64(s.latency.Microseconds())/1000.0)
	}
	sort.Float64s(latenciesMs)

	var sum float64
	for _, v := range latenciesMs {
		sum += v
	}
	res.AverageLatencyMs = sum / float64(len(latenciesMs))
	res.P95LatencyMs = percentile(latenciesMs, 0.95)
	res.P99LatencyMs = percentile(latenciesMs, 0.99)
	res.ThroughputOpsPerSec = float64(res.TotalOperations) / elapsed.Seconds()
	return res
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
