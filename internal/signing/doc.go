// Package signing implements the HMAC signature scheme used to authenticate
// API requests from tenant applications.
//
// # Canonical payload
//
// Every signed request covers a canonical payload built by concatenating, in
// fixed order and with no delimiters:
//
//	timestamp (decimal milliseconds since epoch) + METHOD + path + body
//
// where METHOD is the upper-case HTTP method, path excludes the host and any
// query string, and body is the raw request body (empty for body-less
// requests). The signature is the lower-case hex encoding of
// HMAC-SHA256(secretKey, payload).
//
// # Verification
//
// Verify recomputes the signature and compares it with hmac.Equal. It never
// returns an error: a malformed or absent candidate signature is simply a
// failed verification. Timestamp freshness is enforced by the caller, not
// here — this package only answers "was this payload signed with this key".
package signing
