package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultDataDir != "./ordkv-data" {
		t.Errorf("DefaultDataDir = %q, want %q", cfg.DefaultDataDir, "./ordkv-data")
	}
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want %q", cfg.DefaultOutput, "table")
	}
	if cfg.DefaultCompaction != "LEVELED" {
		t.Errorf("DefaultCompaction = %q, want %q", cfg.DefaultCompaction, "LEVELED")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath should not be empty")
	}
	if !filepath.IsAbs(path) {
		t.Error("Path should be absolute")
	}

	expected := filepath.Join(".ordkv", "cli.yaml")
	if !containsSuffix(path, expected) {
		t.Errorf("Path = %q, should end with %q", path, expected)
	}
}

func containsSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("Load should not error for nonexistent file: %v", err)
	}
	if cfg == nil || cfg.DefaultDataDir != "./ordkv-data" {
		t.Error("Load should return default config for nonexistent file")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "cli.yaml")

	cfg := &CLIConfig{DefaultDataDir: "/var/lib/ordkv", DefaultOutput: "json", DefaultCompaction: "TIERED"}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Fatal("directory should have been created")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DefaultDataDir != cfg.DefaultDataDir || loaded.DefaultOutput != cfg.DefaultOutput || loaded.DefaultCompaction != cfg.DefaultCompaction {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}
