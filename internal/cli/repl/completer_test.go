package repl

import "testing"

func TestNewCompleter(t *testing.T) {
	c := NewCompleter()
	if c == nil {
		t.Fatal("NewCompleter returned nil")
	}
	if len(c.commands) == 0 {
		t.Error("commands should be initialized")
	}
}

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter()

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{name: "GET prefix", prefix: "GET", want: []string{"GET", "GET_AT", "GET_WHERE"}},
		{name: "lowercase matches case-insensitively", prefix: "get", want: []string{"GET", "GET_AT", "GET_WHERE"}},
		{name: "SCAN prefix", prefix: "SCAN", want: []string{"SCAN", "SCAN_ORDER"}},
		{name: "exact PUT", prefix: "PUT", want: []string{"PUT"}},
		{name: "no match", prefix: "NONEXISTENT", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if tt.want == nil {
				if len(got) > 0 {
					t.Errorf("Complete(%q) = %v, want nil/empty", tt.prefix, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Complete(%q) returned %d items, want %d", tt.prefix, len(got), len(tt.want))
			}
			for i, g := range got {
				if g != tt.want[i] {
					t.Errorf("Complete(%q)[%d] = %q, want %q", tt.prefix, i, g, tt.want[i])
				}
			}
		})
	}
}

func TestCompleter_EssentialCommandsPresent(t *testing.T) {
	c := NewCompleter()
	essential := []string{"PUT", "GET", "DEL", "SCAN", "SNAPSHOT", "COMPACT", "HELP", "EXIT"}
	for _, cmd := range essential {
		found := false
		for _, got := range c.commands {
			if got == cmd {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("essential command %q not found in commands", cmd)
		}
	}
}
