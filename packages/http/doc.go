// Package http provides the transport used by the webservice layer.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts
//   - Redirect handling
//   - Proxy and TLS verification settings
//   - Client-side rate limiting
//   - Buffered response bodies with timing
package http
