// ABOUTME: Error taxonomy for SDK calls
// ABOUTME: Distinguishes config, transport, server-status, and decode failures

package client

import (
	"errors"
	"fmt"

	"github.com/keygate/keygate/internal/signing"
)

// ErrNoSecretKey is returned before any network I/O when the credentials
// carry no secret key. The request is never sent unsigned.
var ErrNoSecretKey = signing.ErrNoSecretKey

// ErrNoSession is returned by session-scoped operations when no session is
// held.
var ErrNoSession = errors.New("no active session")

// errMissingToken marks a success response that should have carried a
// session token but did not.
var errMissingToken = errors.New("response missing session token")

// TransportError wraps a failure below HTTP: DNS, connect, timeout. These
// are the only errors a caller may reasonably retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from the server. Message carries the
// server's error string verbatim when the envelope had one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// DecodeError is a response body that is not the expected JSON. It is fatal
// for the call and never touches session state.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// invalidatesSession reports whether an error means the session token is no
// longer honored by the server.
func invalidatesSession(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == 401 || se.Status == 403
}
