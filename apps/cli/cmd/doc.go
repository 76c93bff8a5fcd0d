// Package cmd implements the websvc CLI commands using Cobra.
//
// Available commands:
//   - request: Send one request, or repeat it and report latency percentiles
//   - upload: POST files as multipart form data
//   - history: List or prune the SQLite request journal
//   - completion: Generate shell completion scripts
//   - version: Show websvc version information
//
// Every command shares the session built from the config file, an optional
// .env file and the global flags: base address, default headers,
// credentials, rate limit and retry policy.
package cmd
