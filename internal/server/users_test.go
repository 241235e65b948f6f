// ABOUTME: Tests for the signed end-user endpoints
// ABOUTME: Covers register, login, profile fetch, logout, and auth failures

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/store"
)

func TestUserRegister(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)

	body := []byte(`{"email":"ada@example.com","password":"hunter22","firstName":"Ada","lastName":"Lovelace"}`)
	req := signedRequest(t, app, http.MethodPost, "/api/users/register", body)

	status, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data struct {
		SessionToken string       `json:"sessionToken"`
		ExpiresAt    string       `json:"expiresAt"`
		User         *userPayload `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.SessionToken)
	require.NotNil(t, data.User)
	assert.Equal(t, "ada@example.com", data.User.Email)
	assert.Equal(t, "Ada", data.User.FirstName)

	// The returned token resolves to a live session bound to this app.
	session, err := st.GetSessionByToken(t.Context(), data.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, app.ID, session.ApplicationID)
}

func TestUserRegister_DuplicateEmail(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	body := []byte(`{"email":"ada@example.com","password":"other","firstName":"A","lastName":"L"}`)
	status, env := doRequest(t, srv, signedRequest(t, app, http.MethodPost, "/api/users/register", body))

	require.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)
	assert.Equal(t, "User with this email already exists", env.Error)
}

func TestUserRegister_MissingFields(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)

	body := []byte(`{"email":"ada@example.com"}`)
	status, env := doRequest(t, srv, signedRequest(t, app, http.MethodPost, "/api/users/register", body))

	require.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestUserLogin(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	body := []byte(`{"email":"ada@example.com","password":"hunter22"}`)
	status, env := doRequest(t, srv, signedRequest(t, app, http.MethodPost, "/api/users/login", body))

	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data, "sessionToken")
	assert.Contains(t, data, "expiresAt")
	// Profile is fetched separately via /api/users/me.
	assert.NotContains(t, data, "user")
}

func TestUserLogin_InvalidCredentials(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	cases := map[string]string{
		"wrong password": `{"email":"ada@example.com","password":"wrong"}`,
		"unknown email":  `{"email":"nobody@example.com","password":"hunter22"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, env := doRequest(t, srv, signedRequest(t, app, http.MethodPost, "/api/users/login", []byte(body)))
			require.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Invalid credentials", env.Error)
		})
	}
}

func TestMe(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	user := seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	session := &store.Session{
		UserID:        user.ID,
		ApplicationID: app.ID,
		Token:         "tok-me-test",
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, st.CreateSession(t.Context(), session))

	req := signedRequest(t, app, http.MethodGet, "/api/users/me", nil)
	req.Header.Set(auth.HeaderSessionToken, session.Token)

	status, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, status)

	var profile userPayload
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "ada@example.com", profile.Email)
}

func TestMe_ExpiredSession(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	user := seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	session := &store.Session{
		UserID:        user.ID,
		ApplicationID: app.ID,
		Token:         "tok-expired",
		ExpiresAt:     time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, st.CreateSession(t.Context(), session))

	req := signedRequest(t, app, http.MethodGet, "/api/users/me", nil)
	req.Header.Set(auth.HeaderSessionToken, session.Token)

	status, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
}

func TestMe_SessionFromAnotherApplication(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	user := seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	other := &store.Application{
		DeveloperID: app.DeveloperID,
		Name:        "Other App",
		PublicKey:   "pk_other",
		SecretKey:   "sk_other",
	}
	require.NoError(t, st.CreateApplication(t.Context(), other))

	// Session was issued under the first app; present it via the second.
	session := &store.Session{
		UserID:        user.ID,
		ApplicationID: app.ID,
		Token:         "tok-cross-app",
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, st.CreateSession(t.Context(), session))

	req := signedRequest(t, other, http.MethodGet, "/api/users/me", nil)
	req.Header.Set(auth.HeaderSessionToken, session.Token)

	status, _ := doRequest(t, srv, req)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestLogout(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	user := seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	session := &store.Session{
		UserID:        user.ID,
		ApplicationID: app.ID,
		Token:         "tok-logout",
		ExpiresAt:     time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, st.CreateSession(t.Context(), session))

	req := signedRequest(t, app, http.MethodPost, "/api/users/logout", nil)
	req.Header.Set(auth.HeaderSessionToken, session.Token)

	status, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	// The token no longer resolves.
	_, err := st.GetSessionByToken(t.Context(), session.Token)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogout_AllDevices(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	user := seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	tokens := []string{"tok-phone", "tok-laptop", "tok-tablet"}
	for _, tok := range tokens {
		require.NoError(t, st.CreateSession(t.Context(), &store.Session{
			UserID:        user.ID,
			ApplicationID: app.ID,
			Token:         tok,
			ExpiresAt:     time.Now().UTC().Add(time.Hour),
		}))
	}

	body := []byte(`{"allDevices":true}`)
	req := signedRequest(t, app, http.MethodPost, "/api/users/logout", body)
	req.Header.Set(auth.HeaderSessionToken, "tok-phone")

	status, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	for _, tok := range tokens {
		_, err := st.GetSessionByToken(t.Context(), tok)
		require.ErrorIs(t, err, store.ErrNotFound, "token %s should be revoked", tok)
	}
}

func TestUserEndpoints_RejectUnsignedRequests(t *testing.T) {
	srv, st := newTestServer(t)
	app := seedApplication(t, st)
	seedUser(t, st, app.ID, "ada@example.com", "hunter22")

	body := []byte(`{"email":"ada@example.com","password":"hunter22"}`)

	t.Run("no headers at all", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewReader(body))
		status, env := doRequest(t, srv, req)
		require.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, env.Success)
	})

	t.Run("signature from the wrong secret", func(t *testing.T) {
		wrongApp := *app
		wrongApp.SecretKey = "sk_not_the_real_one"
		req := signedRequest(t, &wrongApp, http.MethodPost, "/api/users/login", body)
		status, _ := doRequest(t, srv, req)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := signedRequest(t, app, http.MethodPost, "/api/users/login", body)
		req.Header.Set(auth.HeaderTimestamp, "1500000000000")
		status, _ := doRequest(t, srv, req)
		require.Equal(t, http.StatusUnauthorized, status)
	})
}
