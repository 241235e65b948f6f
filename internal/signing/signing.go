// ABOUTME: HMAC-SHA256 request signing and verification over canonical payloads
// ABOUTME: Shared by the client SDK and the server-side auth middleware

package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrNoSecretKey is returned when signing is attempted without a secret key.
// Callers must abort the request rather than send it unsigned.
var ErrNoSecretKey = errors.New("signing: secret key not configured")

// Payload builds the canonical signing payload for a request.
// The timestamp is milliseconds since epoch; method is upper-cased; path
// must exclude host and query string.
func Payload(method, path string, timestamp int64, body []byte) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(strings.ToUpper(method))
	b.WriteString(path)
	b.Write(body)
	return b.String()
}

// Sign computes the lower-case hex HMAC-SHA256 signature of the canonical
// payload under secretKey. Returns ErrNoSecretKey if secretKey is empty.
func Sign(secretKey, method, path string, timestamp int64, body []byte) (string, error) {
	if secretKey == "" {
		return "", ErrNoSecretKey
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(Payload(method, path, timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether candidate is a valid signature for the given
// request data under secretKey. The comparison is constant-time. Any
// malformed input (empty key, empty candidate, wrong length) verifies
// as false; Verify never panics or returns an error.
func Verify(secretKey, method, path string, timestamp int64, body []byte, candidate string) bool {
	if secretKey == "" || candidate == "" {
		return false
	}
	expected, err := Sign(secretKey, method, path, timestamp, body)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(candidate))
}
