// Package output provides output formatting for ordkv-cli.
//
// This package handles all CLI output formatting:
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Table rendering with wide mode support
//   - json.go: JSON output formatting
//   - yaml.go: YAML formatter placeholder (writes no output)
//   - spinner.go: Progress animation for long operations
//
// Formatters support:
//
//   - Table and JSON output; the yaml format name is accepted but
//     produces no output
//   - Wide mode for additional columns
//   - Machine-readable output for scripting
//
// Output is plain text; no color is emitted.
package output
