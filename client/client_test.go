// ABOUTME: Tests for signed request construction and envelope decoding
// ABOUTME: Verifies headers against the same HMAC scheme the server uses

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/signing"
)

const (
	testPublicKey = "pk_client_test"
	testSecretKey = "sk_client_test"
)

func testCredentials() Credentials {
	return Credentials{PublicKey: testPublicKey, SecretKey: testSecretKey}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New("https://auth.example.com", Credentials{PublicKey: "pk_x"})
	require.ErrorIs(t, err, ErrNoSecretKey)

	_, err = New("https://auth.example.com", Credentials{SecretKey: "sk_x"})
	require.Error(t, err)

	_, err = New("not a url", testCredentials())
	require.Error(t, err)

	_, err = New("/just/a/path", testCredentials())
	require.Error(t, err)
}

func TestDo_SignsRequest(t *testing.T) {
	var got struct {
		publicKey string
		timestamp int64
		signature string
		body      []byte
		path      string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.publicKey = r.Header.Get("X-Public-Key")
		got.timestamp, _ = strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		got.signature = r.Header.Get("X-Signature")
		got.body, _ = io.ReadAll(r.Body)
		got.path = r.URL.Path
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, testCredentials())
	require.NoError(t, err)

	body := []byte(`{"email":"a@b.com"}`)
	status, _, err := c.do(t.Context(), http.MethodPost, "/api/users/login", body, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, testPublicKey, got.publicKey)
	assert.Equal(t, body, got.body)
	assert.True(t, signing.Verify(testSecretKey, http.MethodPost, got.path, got.timestamp, got.body, got.signature))

	// The timestamp is wall-clock at send time.
	now := time.Now().UnixMilli()
	assert.InDelta(t, now, got.timestamp, float64(5*time.Second/time.Millisecond))
}

func TestDo_SignsPathWithoutQuery(t *testing.T) {
	var gotPath string
	var gotTS int64
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTS, _ = strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		gotSig = r.Header.Get("X-Signature")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, testCredentials())
	require.NoError(t, err)

	_, _, err = c.do(t.Context(), http.MethodGet, "/api/users/me?verbose=1", nil, "")
	require.NoError(t, err)

	// Query parameters are carried on the wire but excluded from signing.
	assert.Equal(t, "/api/users/me", gotPath)
	assert.True(t, signing.Verify(testSecretKey, http.MethodGet, "/api/users/me", gotTS, nil, gotSig))
}

func TestCall_ErrorTaxonomy(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		c, err := New("http://127.0.0.1:1", testCredentials(),
			WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))
		require.NoError(t, err)

		err = c.call(t.Context(), http.MethodGet, "/health", nil, "", nil)
		var te *TransportError
		require.ErrorAs(t, err, &te)
	})

	t.Run("server error carries message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"success":false,"error":"email taken"}`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, testCredentials())
		require.NoError(t, err)

		err = c.call(t.Context(), http.MethodPost, "/api/users/register", map[string]string{}, "", nil)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusConflict, se.Status)
		assert.Equal(t, "email taken", se.Message)
	})

	t.Run("malformed success body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, testCredentials())
		require.NoError(t, err)

		err = c.call(t.Context(), http.MethodGet, "/api/users/me", nil, "tok", nil)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
	})

	t.Run("non-2xx with unparseable body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>bad gateway</html>`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, testCredentials())
		require.NoError(t, err)

		err = c.call(t.Context(), http.MethodGet, "/health", nil, "", nil)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.Status)
	})
}

func TestCall_DecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"id": "u1", "email": "a@b.com"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, testCredentials())
	require.NoError(t, err)

	var user User
	require.NoError(t, c.call(t.Context(), http.MethodGet, "/api/users/me", nil, "tok", &user))
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestCheckConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health is unauthenticated: no signature headers expected.
		assert.Empty(t, r.Header.Get("X-Signature"))
		w.Write([]byte(`{"success":true,"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, testCredentials())
	require.NoError(t, err)
	assert.True(t, c.CheckConnectivity(t.Context()))

	srv.Close()
	assert.False(t, c.CheckConnectivity(context.Background()))
}
