// Package config handles configuration loading and management for websvc.
//
// It provides functionality for:
//   - Loading configuration from YAML or JSON files, with ${VAR} expansion
//   - Default configuration values and merging of overrides
//   - Watching a config file and reloading it on change
package config
