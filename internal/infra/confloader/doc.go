// Package confloader provides configuration loading mechanism.
//
// This package implements a flexible configuration loader that supports
// multiple sources and formats using koanf as the underlying library.
//
// Features:
//
//   - Multiple Sources: Files, environment variables, maps
//   - File Format: YAML (the only parser used)
//   - Watch Support: Automatic reload on config file changes
//   - Type Safety: Unmarshaling into typed structs
//   - Defaults: Default value support for missing keys
//
// Priority (highest to lowest) for Load:
//
//  1. Environment variables
//  2. Configuration files
//  3. Default values
//
// Command-line flags are not read; LoadMap can layer values on top.
//
// @design DS-0502
// @adr AD-0501
package confloader
