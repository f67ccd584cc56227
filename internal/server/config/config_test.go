// Package config defines the server configuration structure.
package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Storage.Compaction != DefaultCompactionName {
		t.Errorf("Compaction = %q, want %q", cfg.Storage.Compaction, DefaultCompactionName)
	}
	if cfg.Cluster.RaftAddr != DefaultRaftAddr {
		t.Errorf("RaftAddr = %q, want %q", cfg.Cluster.RaftAddr, DefaultRaftAddr)
	}
	if cfg.Cluster.MaxRetryAttempts != DefaultMaxRetryAttempts {
		t.Errorf("MaxRetryAttempts = %d, want %d", cfg.Cluster.MaxRetryAttempts, DefaultMaxRetryAttempts)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
}

func TestSanitize(t *testing.T) {
	cfg := &ServerConfig{
		Security: SecuritySection{
			EncryptionKey: "super-secret-key-1234567890",
		},
	}

	sanitized := Sanitize(cfg)

	if cfg.Security.EncryptionKey != "super-secret-key-1234567890" {
		t.Error("Original config should not be modified")
	}
	if sanitized.Security.EncryptionKey == cfg.Security.EncryptionKey {
		t.Error("Sanitized config should mask the encryption key")
	}
	if len(sanitized.Security.EncryptionKey) != len(cfg.Security.EncryptionKey) {
		t.Errorf("Masked key length = %d, want %d", len(sanitized.Security.EncryptionKey), len(cfg.Security.EncryptionKey))
	}
}

func TestSanitize_EmptyKey(t *testing.T) {
	cfg := &ServerConfig{Security: SecuritySection{EncryptionKey: ""}}
	sanitized := Sanitize(cfg)
	if sanitized.Security.EncryptionKey != "" {
		t.Error("Empty key should remain empty")
	}
}

func TestSanitize_ShortKey(t *testing.T) {
	cfg := &ServerConfig{Security: SecuritySection{EncryptionKey: "abc"}}
	sanitized := Sanitize(cfg)
	if sanitized.Security.EncryptionKey != "****" {
		t.Errorf("Short key should be fully masked, got %q", sanitized.Security.EncryptionKey)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a", "****"},
		{"ab", "****"},
		{"abc", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"abcdef", "ab**ef"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		result := maskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestVerify_ValidConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := &ServerConfig{
		Storage: StorageSection{DataDir: dir, Compaction: "LEVELED"},
		Cluster: ClusterSection{RaftAddr: "127.0.0.1:5343"},
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_EmptyDataDir(t *testing.T) {
	cfg := &ServerConfig{
		Storage: StorageSection{DataDir: "", Compaction: "LEVELED"},
		Cluster: ClusterSection{RaftAddr: "127.0.0.1:5343"},
	}

	if err := Verify(cfg); err == nil {
		t.Error("Expected error for empty data_dir")
	}
}

func TestVerify_InvalidCompaction(t *testing.T) {
	dir := t.TempDir()

	cfg := &ServerConfig{
		Storage: StorageSection{DataDir: dir, Compaction: "BOGUS"},
		Cluster: ClusterSection{RaftAddr: "127.0.0.1:5343"},
	}

	if err := Verify(cfg); err == nil {
		t.Error("Expected error for invalid compaction strategy")
	}
}

func TestVerify_EmptyRaftAddr(t *testing.T) {
	dir := t.TempDir()

	cfg := &ServerConfig{
		Storage: StorageSection{DataDir: dir, Compaction: "LEVELED"},
		Cluster: ClusterSection{RaftAddr: ""},
	}

	if err := Verify(cfg); err == nil {
		t.Error("Expected error for empty raft_addr")
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	dir := t.TempDir()
	newDir := dir + "/subdir/data"

	cfg := &ServerConfig{
		Storage: StorageSection{DataDir: newDir, Compaction: "LEVELED"},
		Cluster: ClusterSection{RaftAddr: "127.0.0.1:5343"},
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("Data directory should have been created")
	}
}

func TestConstants(t *testing.T) {
	if DefaultRaftAddr != "127.0.0.1:5343" {
		t.Errorf("DefaultRaftAddr = %q", DefaultRaftAddr)
	}
	if DefaultLogLevel != "info" {
		t.Errorf("DefaultLogLevel = %q", DefaultLogLevel)
	}
	if DefaultLogFormat != "json" {
		t.Errorf("DefaultLogFormat = %q", DefaultLogFormat)
	}
}

func TestServerConfig_Struct(t *testing.T) {
	cfg := ServerConfig{
		Storage: StorageSection{
			DataDir:    "/data",
			Compaction: "TIERED",
		},
		Security: SecuritySection{
			EncryptionKey: "secret",
			TLSCAFile:     "/path/to/ca.pem",
		},
		Cluster: ClusterSection{
			NodeID:           "node-1",
			RaftAddr:         "0.0.0.0:5343",
			Peers:            []string{"node-2:5343", "node-3:5343"},
			PrepareTimeout:   5 * time.Second,
			MaxRetryAttempts: 3,
		},
		Log: LogSection{
			Level:  "debug",
			Format: "text",
		},
	}

	if cfg.Storage.DataDir != "/data" {
		t.Error("DataDir not set correctly")
	}
	if cfg.Storage.Compaction != "TIERED" {
		t.Error("Compaction not set correctly")
	}
	if len(cfg.Cluster.Peers) != 2 {
		t.Error("Cluster peers not set correctly")
	}
}
