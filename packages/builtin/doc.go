// Package builtin provides the functions available in header value templates.
//
// Available functions:
//   - uuid(): random UUID v4, e.g. for X-Request-Id
//   - now(), timestamp(), timestampMs(), date(format)
//   - random(min, max), randomString(length)
//   - base64(value), basicAuth(user, pass)
//   - md5(value), sha256(value), urlEncode(value)
//
// Functions are invoked as {{name(args)}} inside header values.
package builtin
