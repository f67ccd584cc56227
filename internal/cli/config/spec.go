// Package config defines ordkv-cli's local configuration: persisted
// defaults for the embedded engine the REPL opens, separate from the
// server-side configuration in internal/server/config.
package config

// CLIConfig is the local configuration for ordkv-cli.
type CLIConfig struct {
	DefaultDataDir    string `yaml:"default_data_dir"`
	DefaultOutput     string `yaml:"default_output"` // table, json, yaml
	DefaultCompaction string `yaml:"default_compaction"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultDataDir:    "./ordkv-data",
		DefaultOutput:     "table",
		DefaultCompaction: "LEVELED",
	}
}
