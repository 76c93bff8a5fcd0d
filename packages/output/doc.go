// Package output provides formatters for displaying call results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output, written on Flush
//
// Both formatters also render the latency summary of repeated runs.
package output
