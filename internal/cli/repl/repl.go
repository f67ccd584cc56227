// Package repl provides the interactive command loop fronting an
// embedded ordkv engine (the command REPL collaborator described at
// §6's external interface seam, not part of the core).
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ordkv/ordkv/internal/kv/engine"
)

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	exec      *Executor
}

// New creates a new REPL instance driving eng.
func New(eng *engine.Engine) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(),
		history:   NewHistory(),
		exec:      NewExecutor(eng),
	}
}

// Run starts the REPL loop, returning nil on EXIT or EOF.
func (r *REPL) Run() error {
	reader := bufio.NewReader(r.input)

	for {
		fmt.Fprint(r.output, "ordkv> ")

		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		result, err := r.exec.Execute(line)
		if err != nil {
			fmt.Fprintf(r.output, "\033[31mERR %v\033[0m\n", err)
			continue
		}
		if result != "" {
			fmt.Fprintln(r.output, result)
		}
	}
}
