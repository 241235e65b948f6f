// ABOUTME: HTTP middleware for developer bearer auth, signed-request auth, and sessions
// ABOUTME: Verifies HMAC signatures with a freshness window and resolves session tokens

package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/signing"
	"github.com/keygate/keygate/internal/store"
)

// Signed-request header names. These are the wire contract with client SDKs.
const (
	HeaderPublicKey    = "X-Public-Key"
	HeaderTimestamp    = "X-Timestamp"
	HeaderSignature    = "X-Signature"
	HeaderSessionToken = "X-Session-Token"
)

// DefaultTimestampWindow bounds the clock skew accepted on signed requests.
const DefaultTimestampWindow = 5 * time.Minute

// maxSignedBodyBytes caps how much request body the verifier will buffer.
const maxSignedBodyBytes = 1 << 20

// AppLookup resolves applications by public key.
type AppLookup interface {
	GetApplicationByPublicKey(ctx context.Context, publicKey string) (*store.Application, error)
}

// SessionLookup resolves sessions by token.
type SessionLookup interface {
	GetSessionByToken(ctx context.Context, token string) (*store.Session, error)
}

// ReplayGuard reports whether a signature was already accepted within the
// timestamp window.
type ReplayGuard interface {
	Seen(signature string) bool
}

// unauthorized writes the standard failure envelope with a 401 status.
func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + msg + `"}`))
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// DeveloperAuthMiddleware creates middleware that authenticates developers
// via bearer JWTs and adds the developer ID to the request context.
func DeveloperAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			developerID, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithDeveloper(r.Context(), developerID)))
		})
	}
}

// AppAuthMiddleware creates middleware that authenticates tenant
// applications via signed-request headers. The signature covers
// timestamp+method+path+body; the timestamp must fall within window of the
// server clock. On success the application record is added to the request
// context. A non-nil guard additionally rejects reuse of an
// already-accepted signature inside the window.
func AppAuthMiddleware(apps AppLookup, window time.Duration, guard ReplayGuard, logger *slog.Logger) func(http.Handler) http.Handler {
	if window <= 0 {
		window = DefaultTimestampWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			publicKey := r.Header.Get(HeaderPublicKey)
			signature := r.Header.Get(HeaderSignature)
			timestamp := r.Header.Get(HeaderTimestamp)

			if publicKey == "" || signature == "" || timestamp == "" {
				unauthorized(w, "missing authentication headers")
				return
			}

			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				unauthorized(w, "invalid timestamp")
				return
			}

			// Stale or future-dated requests are rejected outright; the
			// client is expected to re-sign with wall-clock time.
			skew := time.Since(time.UnixMilli(ts))
			if skew < 0 {
				skew = -skew
			}
			if skew > window {
				logger.Debug("rejected stale signed request", "public_key", publicKey, "skew", skew)
				unauthorized(w, "request timestamp outside accepted window")
				return
			}

			app, err := apps.GetApplicationByPublicKey(r.Context(), publicKey)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					logger.Error("application lookup failed", "error", err)
				}
				unauthorized(w, "invalid public key")
				return
			}

			// The signature covers the raw body; buffer it and rewind for
			// the handler.
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
			if err != nil {
				unauthorized(w, "unreadable request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !signing.Verify(app.SecretKey, r.Method, r.URL.Path, ts, body, signature) {
				logger.Debug("rejected bad signature", "public_key", publicKey, "path", r.URL.Path)
				unauthorized(w, "invalid signature")
				return
			}

			// Only mutating requests are guarded: two identical GETs in
			// the same millisecond sign identically and are legitimate.
			if guard != nil && r.Method != http.MethodGet && guard.Seen(signature) {
				logger.Warn("rejected replayed request", "public_key", publicKey, "path", r.URL.Path)
				unauthorized(w, "request already processed")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithApplication(r.Context(), app)))
		})
	}
}

// SessionMiddleware creates middleware that resolves X-Session-Token to a
// live session scoped to the authenticated application. Must be used after
// AppAuthMiddleware. Unknown, expired, or cross-application tokens yield 401.
func SessionMiddleware(sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderSessionToken)
			if token == "" {
				unauthorized(w, "missing session token")
				return
			}

			session, err := sessions.GetSessionByToken(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid or expired session")
				return
			}

			if app := ApplicationFromContext(r.Context()); app != nil && session.ApplicationID != app.ID {
				unauthorized(w, "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
