package repl

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseRecord parses a value of the form "field1=v1,field2=v2" into a flat
// map, the ad-hoc structure GET_WHERE/COUNT filter against since the
// store itself carries no schema.
func parseRecord(value string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return fields
}

func compareField(got, op, want string) bool {
	if gf, err1 := strconv.ParseFloat(got, 64); err1 == nil {
		if wf, err2 := strconv.ParseFloat(want, 64); err2 == nil {
			switch op {
			case "=", "==":
				return gf == wf
			case "!=":
				return gf != wf
			case ">":
				return gf > wf
			case ">=":
				return gf >= wf
			case "<":
				return gf < wf
			case "<=":
				return gf <= wf
			}
		}
	}
	switch op {
	case "=", "==":
		return got == want
	case "!=":
		return got != want
	case ">":
		return got > want
	case ">=":
		return got >= want
	case "<":
		return got < want
	case "<=":
		return got <= want
	default:
		return false
	}
}

type kv struct {
	key, value string
}

func (x *Executor) allPairs() ([]kv, error) {
	it, err := x.eng.NewIterator(x.eng.CurrentSeq(), nil)
	if err != nil {
		return nil, err
	}
	var out []kv
	for ; it.Valid(); it.Next() {
		out = append(out, kv{key: string(it.Key()), value: string(it.Value())})
	}
	return out, nil
}

func (x *Executor) getWhere(args []string) (string, error) {
	field, op, value, limit, err := parseWhereLimit(args)
	if err != nil {
		return "", err
	}
	pairs, err := x.allPairs()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	n := 0
	for _, p := range pairs {
		if limit > 0 && n >= limit {
			break
		}
		rec := parseRecord(p.value)
		got, ok := rec[field]
		if !ok || !compareField(got, op, value) {
			continue
		}
		fmt.Fprintf(&sb, "%s = %s\n", p.key, p.value)
		n++
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func parseWhereLimit(args []string) (field, op, value string, limit int, err error) {
	if len(args) < 3 {
		return "", "", "", 0, errors.New("usage: GET_WHERE field op value [LIMIT n]")
	}
	field, op, value = args[0], args[1], args[2]
	rest := args[3:]
	if len(rest) == 2 && strings.EqualFold(rest[0], "LIMIT") {
		limit, err = strconv.Atoi(rest[1])
		if err != nil {
			return "", "", "", 0, fmt.Errorf("invalid LIMIT: %w", err)
		}
	} else if len(rest) != 0 {
		return "", "", "", 0, errors.New("usage: GET_WHERE field op value [LIMIT n]")
	}
	return field, op, value, limit, nil
}

func (x *Executor) count(args []string) (string, error) {
	pairs, err := x.allPairs()
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return strconv.Itoa(len(pairs)), nil
	}
	if len(args) < 4 || !strings.EqualFold(args[0], "WHERE") {
		return "", errors.New("usage: COUNT [WHERE field op value]")
	}
	field, op, value := args[1], args[2], args[3]
	n := 0
	for _, p := range pairs {
		rec := parseRecord(p.value)
		if got, ok := rec[field]; ok && compareField(got, op, value) {
			n++
		}
	}
	return strconv.Itoa(n), nil
}

type aggKind int

const (
	aggSum aggKind = iota
	aggAvg
	aggMinMax
)

// aggregate implements SUM/AVG/MIN_MAX pattern: values of keys
// matching pattern are parsed as plain numbers (not field records) and
// aggregated.
func (x *Executor) aggregate(args []string, kind aggKind) (string, error) {
	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	} else if len(args) > 1 {
		return "", errors.New("usage: SUM|AVG|MIN_MAX [pattern]")
	}
	pairs, err := x.allPairs()
	if err != nil {
		return "", err
	}
	var values []float64
	for _, p := range pairs {
		if !matchGlob(pattern, p.key) {
			continue
		}
		f, err := strconv.ParseFloat(p.value, 64)
		if err != nil {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return "(no matching numeric values)", nil
	}
	switch kind {
	case aggSum:
		var total float64
		for _, v := range values {
			total += v
		}
		return strconv.FormatFloat(total, 'g', -1, 64), nil
	case aggAvg:
		var total float64
		for _, v := range values {
			total += v
		}
		return strconv.FormatFloat(total/float64(len(values)), 'g', -1, 64), nil
	case aggMinMax:
		min, max := values[0], values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return fmt.Sprintf("min=%s max=%s", strconv.FormatFloat(min, 'g', -1, 64), strconv.FormatFloat(max, 'g', -1, 64)), nil
	default:
		return "", fmt.Errorf("unknown aggregate kind %d", kind)
	}
}

func (x *Executor) scanOrder(args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("usage: SCAN_ORDER {ASC|DESC} [lo hi] [LIMIT n]")
	}
	desc := strings.EqualFold(args[0], "DESC")
	if !desc && !strings.EqualFold(args[0], "ASC") {
		return "", errors.New("usage: SCAN_ORDER {ASC|DESC} [lo hi] [LIMIT n]")
	}
	rest := args[1:]
	var lo, hi string
	limit := 0
	switch {
	case len(rest) == 0:
	case len(rest) == 2 && strings.EqualFold(rest[0], "LIMIT"):
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return "", fmt.Errorf("invalid LIMIT: %w", err)
		}
		limit = n
	case len(rest) == 2:
		lo, hi = rest[0], rest[1]
	case len(rest) == 4 && strings.EqualFold(rest[2], "LIMIT"):
		lo, hi = rest[0], rest[1]
		n, err := strconv.Atoi(rest[3])
		if err != nil {
			return "", fmt.Errorf("invalid LIMIT: %w", err)
		}
		limit = n
	default:
		return "", errors.New("usage: SCAN_ORDER {ASC|DESC} [lo hi] [LIMIT n]")
	}

	pairs, err := x.allPairs()
	if err != nil {
		return "", err
	}
	filtered := pairs[:0:0]
	for _, p := range pairs {
		if lo != "" && p.key < lo {
			continue
		}
		if hi != "" && p.key > hi {
			continue
		}
		filtered = append(filtered, p)
	}
	if desc {
		sort.Slice(filtered, func(i, j int) bool { return filtered[i].key > filtered[j].key })
	}
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}

	var sb strings.Builder
	for _, p := range filtered {
		fmt.Fprintf(&sb, "%s = %s\n", p.key, p.value)
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}
