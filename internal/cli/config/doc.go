// Package config provides local configuration for ordkv-cli.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.ordkv/cli.yaml)
//   - loader.go: Configuration loading and saving
//
// Configuration includes:
//
//   - Default data directory
//   - Output format preference
//   - Default compaction strategy
package config
