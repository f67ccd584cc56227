// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultRaftAddr = "127.0.0.1:5343"

	DefaultDataDir         = "/var/lib/ordkv-server/data"
	DefaultCompactionName  = "LEVELED"
	DefaultElectionTimeoutMin = 150 * time.Millisecond
	DefaultElectionTimeoutMax = 300 * time.Millisecond
	DefaultHeartbeatInterval  = 50 * time.Millisecond

	DefaultPrepareTimeout   = 5 * time.Second
	DefaultMaxRetryAttempts = 3

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			Compaction: DefaultCompactionName,
		},
		Cluster: ClusterSection{
			RaftAddr:           DefaultRaftAddr,
			ElectionTimeoutMin: DefaultElectionTimeoutMin,
			ElectionTimeoutMax: DefaultElectionTimeoutMax,
			HeartbeatInterval:  DefaultHeartbeatInterval,
			PrepareTimeout:     DefaultPrepareTimeout,
			MaxRetryAttempts:   DefaultMaxRetryAttempts,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
