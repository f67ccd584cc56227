// Package repl provides the interactive command loop fronting an
// embedded ordkv engine.
package repl

import "strings"

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	return &Completer{
		commands: []string{
			"PUT", "GET", "DEL", "SCAN", "PREFIX_SCAN",
			"SNAPSHOT", "GET_AT", "RELEASE",
			"FLUSH", "COMPACT", "SET_COMPACTION",
			"STATS", "LSM",
			"BATCH",
			"GET_WHERE", "COUNT", "SUM", "AVG", "MIN_MAX", "SCAN_ORDER",
			"BENCH",
			"HELP", "MAN", "EXIT",
		},
	}
}

// Complete returns completion suggestions for the given prefix, matched
// case-insensitively since the REPL itself accepts either case.
func (c *Completer) Complete(prefix string) []string {
	upper := strings.ToUpper(prefix)
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, upper) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
