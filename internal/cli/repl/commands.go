package repl

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/ordkv/ordkv/internal/cli/output"
	"github.com/ordkv/ordkv/internal/kv/bench"
	"github.com/ordkv/ordkv/internal/kv/compaction"
	"github.com/ordkv/ordkv/internal/kv/engine"
)

// Executor dispatches one REPL command line against an embedded
// engine, implementing the CLI surface named at the external interface
// seam: PUT/GET/DEL/SCAN/PREFIX_SCAN/SNAPSHOT/GET_AT/RELEASE/FLUSH/
// COMPACT/SET_COMPACTION/STATS/LSM/BATCH/GET_WHERE/COUNT/SUM/AVG/
// MIN_MAX/SCAN_ORDER/BENCH/HELP/MAN.
type Executor struct {
	eng *engine.Engine
}

// NewExecutor returns an Executor driving eng.
func NewExecutor(eng *engine.Engine) *Executor {
	return &Executor{eng: eng}
}

// Execute parses and runs one command line, returning the text to
// print (empty for commands with no output) or an error.
func (x *Executor) Execute(line string) (string, error) {
	fields, err := tokenize(line)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "PUT":
		return x.put(args)
	case "GET":
		return x.get(args)
	case "DEL":
		return x.del(args)
	case "SCAN":
		return x.scan(args)
	case "PREFIX_SCAN":
		return x.prefixScan(args)
	case "SNAPSHOT":
		return x.snapshot(args)
	case "GET_AT":
		return x.getAt(args)
	case "RELEASE":
		return x.release(args)
	case "FLUSH":
		return x.flush(args)
	case "COMPACT":
		return x.compact(args)
	case "SET_COMPACTION":
		return x.setCompaction(args)
	case "STATS":
		return x.stats(args)
	case "LSM":
		return x.lsm(args)
	case "BATCH":
		return x.batch(args)
	case "GET_WHERE":
		return x.getWhere(args)
	case "COUNT":
		return x.count(args)
	case "SUM":
		return x.aggregate(args, aggSum)
	case "AVG":
		return x.aggregate(args, aggAvg)
	case "MIN_MAX":
		return x.aggregate(args, aggMinMax)
	case "SCAN_ORDER":
		return x.scanOrder(args)
	case "BENCH":
		return x.bench(args)
	case "HELP":
		return helpText(), nil
	case "MAN":
		return manText(args)
	default:
		return "", fmt.Errorf("unknown command %q, try HELP", fields[0])
	}
}

// tokenize splits a command line on whitespace, honoring double-quoted
// segments so values may contain spaces.
func tokenize(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hasCur := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			hasCur = true
		case c == ' ' && !inQuotes:
			if hasCur {
				fields = append(fields, cur.String())
				cur.Reset()
				hasCur = false
			}
		default:
			cur.WriteByte(c)
			hasCur = true
		}
	}
	if inQuotes {
		return nil, errors.New("unterminated quoted string")
	}
	if hasCur {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

func (x *Executor) put(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("usage: PUT k v")
	}
	if err := x.eng.Put([]byte(args[0]), []byte(args[1])); err != nil {
		return "", err
	}
	return "OK", nil
}

func (x *Executor) get(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: GET k")
	}
	v, err := x.eng.Get([]byte(args[0]))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (x *Executor) del(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: DEL k")
	}
	if err := x.eng.Del([]byte(args[0])); err != nil {
		return "", err
	}
	return "OK", nil
}

func (x *Executor) scan(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("usage: SCAN lo hi")
	}
	lo, hi := args[0], args[1]
	it, err := x.eng.NewIterator(x.eng.CurrentSeq(), nil)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for ; it.Valid(); it.Next() {
		k := string(it.Key())
		if k < lo {
			continue
		}
		if k > hi {
			break
		}
		fmt.Fprintf(&sb, "%s = %s\n", k, it.Value())
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (x *Executor) prefixScan(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: PREFIX_SCAN p")
	}
	it, err := x.eng.NewIterator(x.eng.CurrentSeq(), []byte(args[0]))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for ; it.Valid(); it.Next() {
		fmt.Fprintf(&sb, "%s = %s\n", it.Key(), it.Value())
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (x *Executor) snapshot(args []string) (string, error) {
	if len(args) != 0 {
		return "", errors.New("usage: SNAPSHOT")
	}
	return strconv.FormatUint(x.eng.GetSnapshot(), 10), nil
}

func (x *Executor) getAt(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.New("usage: GET_AT k snap")
	}
	snap, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid snapshot id: %w", err)
	}
	v, err := x.eng.GetAt([]byte(args[0]), snap)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (x *Executor) release(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: RELEASE snap")
	}
	snap, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid snapshot id: %w", err)
	}
	x.eng.Release(snap)
	return "OK", nil
}

func (x *Executor) flush(args []string) (string, error) {
	if len(args) != 0 {
		return "", errors.New("usage: FLUSH")
	}
	if err := x.eng.Flush(); err != nil {
		return "", err
	}
	return "OK", nil
}

func (x *Executor) compact(args []string) (string, error) {
	if len(args) != 0 {
		return "", errors.New("usage: COMPACT")
	}
	if err := x.eng.Compact(); err != nil {
		return "", err
	}
	return "OK", nil
}

func (x *Executor) setCompaction(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: SET_COMPACTION {LEVELED|TIERED|SIZE_TIERED|TIME_WINDOW}")
	}
	var s compaction.Strategy
	switch strings.ToUpper(args[0]) {
	case "LEVELED":
		s = compaction.Leveled{}
	case "TIERED":
		s = compaction.NewTiered()
	case "SIZE_TIERED":
		s = compaction.NewSizeTiered()
	case "TIME_WINDOW":
		s = compaction.NewTimeWindow()
	default:
		return "", fmt.Errorf("unknown compaction strategy %q", args[0])
	}
	x.eng.SetCompactionStrategy(s)
	return "OK", nil
}

func (x *Executor) stats(args []string) (string, error) {
	if len(args) != 0 {
		return "", errors.New("usage: STATS")
	}
	return renderTable(x.eng.Stats())
}

func (x *Executor) lsm(args []string) (string, error) {
	if len(args) != 0 {
		return "", errors.New("usage: LSM")
	}
	levels := x.eng.LSMStats()
	if len(levels) == 0 {
		return "(empty)", nil
	}
	return renderTable(levels)
}

// renderTable formats data (a struct or slice of structs) as an ASCII
// table, the same rendering ordkv-cli would use for a non-interactive
// "--output table" invocation.
func renderTable(data any) (string, error) {
	var sb strings.Builder
	f := &output.TableFormatter{}
	if err := f.Format(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// batch runs a sequence of PUT/GET/DEL ops given on one line, e.g.
// "BATCH PUT a 1 PUT b 2 DEL c GET a".
func (x *Executor) batch(args []string) (string, error) {
	var sb strings.Builder
	i := 0
	for i < len(args) {
		op := strings.ToUpper(args[i])
		switch op {
		case "PUT":
			if i+2 >= len(args) {
				return "", errors.New("BATCH PUT requires key and value")
			}
			if err := x.eng.Put([]byte(args[i+1]), []byte(args[i+2])); err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "PUT %s OK\n", args[i+1])
			i += 3
		case "DEL":
			if i+1 >= len(args) {
				return "", errors.New("BATCH DEL requires key")
			}
			if err := x.eng.Del([]byte(args[i+1])); err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "DEL %s OK\n", args[i+1])
			i += 2
		case "GET":
			if i+1 >= len(args) {
				return "", errors.New("BATCH GET requires key")
			}
			v, err := x.eng.Get([]byte(args[i+1]))
			if err != nil {
				fmt.Fprintf(&sb, "GET %s ERR %v\n", args[i+1], err)
			} else {
				fmt.Fprintf(&sb, "GET %s %s\n", args[i+1], v)
			}
			i += 2
		default:
			return "", fmt.Errorf("unknown BATCH op %q", args[i])
		}
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// bench runs a YCSB-style workload against the engine, e.g.
// "BENCH A records=1000 ops=5000 threads=4".
func (x *Executor) bench(args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("usage: BENCH {A|B|C|D|E|F} [records=N] [ops=N] [threads=N]")
	}
	cfg := bench.DefaultConfig()
	switch strings.ToUpper(args[0]) {
	case "A":
		cfg.Workload = bench.WorkloadA
	case "B":
		cfg.Workload = bench.WorkloadB
	case "C":
		cfg.Workload = bench.WorkloadC
	case "D":
		cfg.Workload = bench.WorkloadD
	case "E":
		cfg.Workload = bench.WorkloadE
	case "F":
		cfg.Workload = bench.WorkloadF
	default:
		return "", fmt.Errorf("unknown workload %q, want one of A-F", args[0])
	}
	for _, kv := range args[1:] {
		name, value, found := strings.Cut(kv, "=")
		if !found {
			return "", fmt.Errorf("malformed option %q, want name=value", kv)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("invalid value for %q: %w", name, err)
		}
		switch name {
		case "records":
			cfg.RecordCount = n
		case "ops":
			cfg.OperationCount = n
		case "threads":
			cfg.ThreadCount = n
		default:
			return "", fmt.Errorf("unknown option %q", name)
		}
	}

	runner := bench.New(x.eng, cfg)
	if err := runner.LoadData(); err != nil {
		return "", err
	}
	result, err := runner.Run()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"total=%d ok=%d duration=%s throughput=%.1f ops/s avg=%.3fms p95=%.3fms p99=%.3fms",
		result.TotalOperations, result.SuccessfulOperations, result.Duration,
		result.ThroughputOpsPerSec, result.AverageLatencyMs, result.P95LatencyMs, result.P99LatencyMs,
	), nil
}

func helpText() string {
	return strings.TrimSpace(`
PUT k v | GET k | DEL k | SCAN lo hi | PREFIX_SCAN p
SNAPSHOT | GET_AT k snap | RELEASE snap
FLUSH | COMPACT | SET_COMPACTION {LEVELED|TIERED|SIZE_TIERED|TIME_WINDOW}
STATS | LSM
BATCH {PUT k v|GET k|DEL k}...
GET_WHERE field op value [LIMIT n] | COUNT [WHERE field op value]
SUM [pattern] | AVG [pattern] | MIN_MAX [pattern]
SCAN_ORDER {ASC|DESC} [lo hi] [LIMIT n]
BENCH {A|B|C|D|E|F} [records=N] [ops=N] [threads=N]
HELP | MAN cmd | EXIT`)
}

func manText(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: MAN cmd")
	}
	pages := map[string]string{
		"PUT":            "PUT k v - write v under key k, durable once this returns",
		"GET":            "GET k - read the current value of k, error if absent or deleted",
		"DEL":            "DEL k - mark k deleted (tombstone)",
		"SCAN":           "SCAN lo hi - print every key in [lo, hi] in ascending order with its value",
		"PREFIX_SCAN":    "PREFIX_SCAN p - print every key sharing prefix p with its value",
		"SNAPSHOT":       "SNAPSHOT - pin the current sequence number, returns a snapshot id",
		"GET_AT":         "GET_AT k snap - read k as it was visible at snapshot id snap",
		"RELEASE":        "RELEASE snap - release a snapshot id returned by SNAPSHOT",
		"FLUSH":          "FLUSH - force the active memtable to an on-disk sstable",
		"COMPACT":        "COMPACT - run one compaction pass under the current strategy",
		"SET_COMPACTION": "SET_COMPACTION {LEVELED|TIERED|SIZE_TIERED|TIME_WINDOW} - switch the active compaction strategy",
		"STATS":          "STATS - print engine-wide counters",
		"LSM":            "LSM - print per-level file and byte counts",
		"BATCH":          "BATCH op... - run a sequence of PUT/GET/DEL ops as one line",
		"GET_WHERE":      "GET_WHERE field op value [LIMIT n] - filter values of the form k1=v1,k2=v2 by field",
		"COUNT":          "COUNT [WHERE field op value] - count all keys, or those matching a filter",
		"SUM":            "SUM [pattern] - sum numeric values of keys matching a glob pattern",
		"AVG":            "AVG [pattern] - average numeric values of keys matching a glob pattern",
		"MIN_MAX":        "MIN_MAX [pattern] - report the minimum and maximum numeric value among matching keys",
		"SCAN_ORDER":     "SCAN_ORDER {ASC|DESC} [lo hi] [LIMIT n] - scan in the given order, optionally bounded and limited",
		"BENCH":          "BENCH {A|B|C|D|E|F} [records=N] [ops=N] [threads=N] - run a YCSB-style workload and report latency/throughput",
		"EXIT":           "EXIT - leave the REPL",
	}
	page, ok := pages[strings.ToUpper(args[0])]
	if !ok {
		return "", fmt.Errorf("no manual entry for %q", args[0])
	}
	return page, nil
}

func matchGlob(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}
