package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ordkv/ordkv/internal/kv/engine"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(engine.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestNew(t *testing.T) {
	r := New(newTestEngine(t))
	if r == nil {
		t.Fatal("New returned nil")
	}
	if r.completer == nil {
		t.Error("completer should be initialized")
	}
	if r.history == nil {
		t.Error("history should be initialized")
	}
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"EXIT uppercase", "EXIT\n"},
		{"EOF", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.NewReader(tt.input)
			output := &bytes.Buffer{}

			r := &REPL{
				input:     input,
				output:    output,
				completer: NewCompleter(),
				history:   NewHistory(),
				exec:      NewExecutor(newTestEngine(t)),
			}

			if err := r.Run(); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
		})
	}
}

func TestREPL_Run_PutGet(t *testing.T) {
	input := strings.NewReader("PUT foo bar\nGET foo\nexit\n")
	output := &bytes.Buffer{}

	r := &REPL{
		input:     input,
		output:    output,
		completer: NewCompleter(),
		history:   NewHistory(),
		exec:      NewExecutor(newTestEngine(t)),
	}

	if err := r.Run(); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
	if !strings.Contains(output.String(), "bar") {
		t.Errorf("expected output to contain %q, got %q", "bar", output.String())
	}
}

func TestREPL_Run_UnknownCommandPrintsError(t *testing.T) {
	input := strings.NewReader("BOGUS\nexit\n")
	output := &bytes.Buffer{}

	r := &REPL{
		input:     input,
		output:    output,
		completer: NewCompleter(),
		history:   NewHistory(),
		exec:      NewExecutor(newTestEngine(t)),
	}

	if err := r.Run(); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
	if !strings.Contains(output.String(), "ERR") {
		t.Errorf("expected an ERR line, got %q", output.String())
	}
}

func TestREPL_Run_EmptyLines(t *testing.T) {
	input := strings.NewReader("\n\n\nexit\n")
	output := &bytes.Buffer{}

	r := &REPL{
		input:     input,
		output:    output,
		completer: NewCompleter(),
		history:   NewHistory(),
		exec:      NewExecutor(newTestEngine(t)),
	}

	if err := r.Run(); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
	if prompts := strings.Count(output.String(), "ordkv>"); prompts < 4 {
		t.Errorf("expected at least 4 prompts, got %d", prompts)
	}
}

func TestREPL_Run_HistoryAdded(t *testing.T) {
	input := strings.NewReader("PUT a 1\nPUT b 2\nexit\n")
	output := &bytes.Buffer{}

	history := NewHistory()
	r := &REPL{
		input:     input,
		output:    output,
		completer: NewCompleter(),
		history:   history,
		exec:      NewExecutor(newTestEngine(t)),
	}

	if err := r.Run(); err != nil {
		t.Errorf("Run() returned error: %v", err)
	}
	if history.Get(0) != "exit" {
		t.Errorf("most recent command = %q, want %q", history.Get(0), "exit")
	}
	if history.Get(1) != "PUT b 2" {
		t.Errorf("second most recent = %q, want %q", history.Get(1), "PUT b 2")
	}
}
