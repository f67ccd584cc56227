package command

import "testing"

func TestCompactionStrategy(t *testing.T) {
	for _, name := range []string{"LEVELED", "TIERED", "SIZE_TIERED", "TIME_WINDOW", ""} {
		if _, err := compactionStrategy(name); err != nil {
			t.Errorf("compactionStrategy(%q): %v", name, err)
		}
	}
	if _, err := compactionStrategy("BOGUS"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "ordkv-cli" {
		t.Errorf("Name = %q, want ordkv-cli", app.Name)
	}
	if len(app.Flags) == 0 {
		t.Error("expected global flags to be registered")
	}
}
