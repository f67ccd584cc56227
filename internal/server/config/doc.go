// Package config provides server configuration for ordkv-server.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (data dir, compaction strategy, cluster addr)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - cluster.go: Translation to raft.Config and twopc.Config
//
// Configuration is loaded via internal/infra/confloader from files and
// environment variables; command-line flags are not read.
package config
