// Package repl provides interactive mode for ordkv CLI.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: Main REPL loop reading one command per input line
//   - commands.go: Command parsing and dispatch to the engine
//   - query.go: Ad-hoc GET_WHERE/COUNT/SUM/AVG/MIN_MAX/SCAN_ORDER helpers
//   - completer.go: Command-name completion (Completer.Complete)
//   - history.go: Command history persistence
//
// Input is read line by line; there is no multi-line input, history
// search, or argument completion, and Run does not invoke the
// Completer. Only error lines are colored.
package repl
