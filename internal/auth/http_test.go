// ABOUTME: Tests for signed-request, session, and developer auth middleware
// ABOUTME: Exercises signature verification, freshness window, and 401 paths

package auth

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/replay"
	"github.com/keygate/keygate/internal/signing"
	"github.com/keygate/keygate/internal/store"
)

// fixtureStore returns a mock store seeded with one application and an
// optional live session.
func fixtureStore(t *testing.T, withSession bool) (*store.MockStore, *store.Application, *store.Session) {
	t.Helper()
	ms := store.NewMockStore()
	ctx := t.Context()

	dev := &store.Developer{FirstName: "A", LastName: "B", Email: "dev@example.com", PasswordHash: "h"}
	require.NoError(t, ms.CreateDeveloper(ctx, dev))

	app := &store.Application{
		DeveloperID: dev.ID,
		Name:        "Fixture",
		Domain:      "fixture.example.com",
		PublicKey:   "pk_fixture",
		SecretKey:   "sk_fixture",
	}
	require.NoError(t, ms.CreateApplication(ctx, app))

	var session *store.Session
	if withSession {
		user := &store.User{ApplicationID: app.ID, Email: "u@example.com", FirstName: "U", LastName: "S", PasswordHash: "h"}
		require.NoError(t, ms.CreateUser(ctx, user))
		session = &store.Session{
			UserID:        user.ID,
			ApplicationID: app.ID,
			Token:         "tok_fixture",
			ExpiresAt:     time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, ms.CreateSession(ctx, session))
	}

	return ms, app, session
}

// signedRequest builds a request carrying valid signature headers for app.
func signedRequest(t *testing.T, app *store.Application, method, path, body string) *http.Request {
	t.Helper()
	ts := time.Now().UnixMilli()
	sig, err := signing.Sign(app.SecretKey, method, path, ts, []byte(body))
	require.NoError(t, err)

	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(HeaderPublicKey, app.PublicKey)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, sig)
	return req
}

func TestAppAuthMiddleware_ValidSignature(t *testing.T) {
	ms, app, _ := fixtureStore(t, false)

	var gotApp *store.Application
	handler := AppAuthMiddleware(ms, 0, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApp = MustApplicationFromContext(r.Context())

		// Body must still be readable by the handler after verification.
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"email":"a@b.com"}`, string(body))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, app, "POST", "/api/users/login", `{"email":"a@b.com"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotApp)
	assert.Equal(t, app.ID, gotApp.ID)
}

func TestAppAuthMiddleware_ReplayRejected(t *testing.T) {
	ms, app, _ := fixtureStore(t, false)

	guard := replay.NewGuard(time.Minute, 100)
	defer guard.Close()

	calls := 0
	handler := AppAuthMiddleware(ms, 0, guard, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := signedRequest(t, app, "POST", "/api/users/login", `{"email":"a@b.com"}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same headers presented again: identical signature, so it is a replay.
	replayed := signedRequest(t, app, "POST", "/api/users/login", `{"email":"a@b.com"}`)
	replayed.Header.Set(HeaderTimestamp, req.Header.Get(HeaderTimestamp))
	replayed.Header.Set(HeaderSignature, req.Header.Get(HeaderSignature))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, replayed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestAppAuthMiddleware_Rejections(t *testing.T) {
	ms, app, _ := fixtureStore(t, false)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})
	handler := AppAuthMiddleware(ms, time.Minute, nil, nil)(next)

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{
			name: "missing headers",
			req: func() *http.Request {
				return httptest.NewRequest("GET", "/api/users/me", nil)
			},
		},
		{
			name: "unknown public key",
			req: func() *http.Request {
				r := signedRequest(t, app, "GET", "/api/users/me", "")
				r.Header.Set(HeaderPublicKey, "pk_unknown")
				return r
			},
		},
		{
			name: "tampered body",
			req: func() *http.Request {
				r := signedRequest(t, app, "POST", "/api/users/login", `{"email":"a@b.com"}`)
				r.Body = io.NopCloser(bytes.NewReader([]byte(`{"email":"evil@b.com"}`)))
				return r
			},
		},
		{
			name: "garbage timestamp",
			req: func() *http.Request {
				r := signedRequest(t, app, "GET", "/api/users/me", "")
				r.Header.Set(HeaderTimestamp, "yesterday")
				return r
			},
		},
		{
			name: "stale timestamp",
			req: func() *http.Request {
				ts := time.Now().Add(-10 * time.Minute).UnixMilli()
				sig, err := signing.Sign(app.SecretKey, "GET", "/api/users/me", ts, nil)
				require.NoError(t, err)
				r := httptest.NewRequest("GET", "/api/users/me", nil)
				r.Header.Set(HeaderPublicKey, app.PublicKey)
				r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
				r.Header.Set(HeaderSignature, sig)
				return r
			},
		},
		{
			name: "signature from wrong secret",
			req: func() *http.Request {
				ts := time.Now().UnixMilli()
				sig, err := signing.Sign("sk_wrong", "GET", "/api/users/me", ts, nil)
				require.NoError(t, err)
				r := httptest.NewRequest("GET", "/api/users/me", nil)
				r.Header.Set(HeaderPublicKey, app.PublicKey)
				r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
				r.Header.Set(HeaderSignature, sig)
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.req())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestSessionMiddleware(t *testing.T) {
	ms, app, session := fixtureStore(t, true)

	var gotSession *store.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = MustSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AppAuthMiddleware(ms, 0, nil, nil)(SessionMiddleware(ms)(inner))

	// Valid session
	req := signedRequest(t, app, "GET", "/api/users/me", "")
	req.Header.Set(HeaderSessionToken, session.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotSession)
	assert.Equal(t, session.UserID, gotSession.UserID)

	// Missing token
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, app, "GET", "/api/users/me", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown token
	req = signedRequest(t, app, "GET", "/api/users/me", "")
	req.Header.Set(HeaderSessionToken, "tok_bogus")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_CrossApplicationToken(t *testing.T) {
	ms, _, session := fixtureStore(t, true)

	// A second application tries to use the first application's session.
	dev := &store.Developer{FirstName: "X", LastName: "Y", Email: "dev2@example.com", PasswordHash: "h"}
	require.NoError(t, ms.CreateDeveloper(t.Context(), dev))
	other := &store.Application{
		DeveloperID: dev.ID,
		Name:        "Other",
		Domain:      "other.example.com",
		PublicKey:   "pk_other",
		SecretKey:   "sk_other",
	}
	require.NoError(t, ms.CreateApplication(t.Context(), other))

	handler := AppAuthMiddleware(ms, 0, nil, nil)(SessionMiddleware(ms)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		})))

	req := signedRequest(t, other, "GET", "/api/users/me", "")
	req.Header.Set(HeaderSessionToken, session.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeveloperAuthMiddleware(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("dev-1", time.Hour)
	require.NoError(t, err)

	var gotID string
	handler := DeveloperAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = DeveloperFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/applications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev-1", gotID)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer garbage"} {
		req := httptest.NewRequest("GET", "/api/applications", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
