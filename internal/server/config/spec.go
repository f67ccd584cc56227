// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for ordkv-server.
type ServerConfig struct {
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Cluster  ClusterSection  `koanf:"cluster"`
	Log      LogSection      `koanf:"log"`
}

// StorageSection configures the embedded engine (C10).
type StorageSection struct {
	DataDir    string `koanf:"data_dir"`
	Compaction string `koanf:"compaction"` // LEVELED, TIERED, SIZE_TIERED, TIME_WINDOW
}

// SecuritySection configures security settings.
type SecuritySection struct {
	EncryptionKey string `koanf:"encryption_key"`
	TLSCAFile     string `koanf:"tls_ca_file"`
}

// ClusterSection configures the Raft cluster (C14) and 2PC coordinator
// (C15) this node participates in.
type ClusterSection struct {
	NodeID   string   `koanf:"node_id"`
	RaftAddr string   `koanf:"raft_addr"` // this node's bind address for raft RPCs
	Peers    []string `koanf:"peers"`     // other nodes' raft addresses

	ElectionTimeoutMin time.Duration `koanf:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `koanf:"election_timeout_max"`
	HeartbeatInterval  time.Duration `koanf:"heartbeat_interval"`

	PrepareTimeout   time.Duration `koanf:"prepare_timeout"`
	MaxRetryAttempts int           `koanf:"max_retry_attempts"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
