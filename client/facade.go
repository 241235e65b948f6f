// ABOUTME: The auth operations: Register, Login, CurrentUser, Logout
// ABOUTME: Login merges the fetched profile before returning

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// User is a profile as returned by the API.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// Profile is the input to Register.
type Profile struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Session is the result of a successful Register or Login. User may be nil
// when the profile could not be attached; the session token is still valid.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// sessionData is the wire shape of register and login responses.
type sessionData struct {
	SessionToken string `json:"sessionToken"`
	ExpiresAt    string `json:"expiresAt"`
	User         *User  `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a user account and opens a session. A failure leaves the
// session manager anonymous and surfaces the server's error verbatim.
func (c *Client) Register(ctx context.Context, profile Profile) (*Session, error) {
	c.sessions.beginAuth()

	var data sessionData
	if err := c.call(ctx, http.MethodPost, "/api/users/register", profile, "", &data); err != nil {
		c.sessions.fail()
		return nil, err
	}

	session, err := c.installSession(data)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Login authenticates a user and opens a session. After the token is
// issued, Login fetches the user's profile and merges it into the result;
// if that fetch fails for a non-auth reason the session stands and User is
// nil.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	c.sessions.beginAuth()

	var data sessionData
	if err := c.call(ctx, http.MethodPost, "/api/users/login", loginRequest{Email: email, Password: password}, "", &data); err != nil {
		c.sessions.fail()
		return nil, err
	}

	session, err := c.installSession(data)
	if err != nil {
		return nil, err
	}

	if user, err := c.CurrentUser(ctx); err == nil {
		session.User = user
	}
	return session, nil
}

// installSession validates and persists a sessionData payload.
func (c *Client) installSession(data sessionData) (*Session, error) {
	if data.SessionToken == "" {
		c.sessions.fail()
		return nil, &DecodeError{Err: errMissingToken}
	}

	var expiresAt time.Time
	if data.ExpiresAt != "" {
		var err error
		expiresAt, err = time.Parse(time.RFC3339, data.ExpiresAt)
		if err != nil {
			c.sessions.fail()
			return nil, &DecodeError{Err: err}
		}
	}

	var cached []byte
	if data.User != nil {
		cached, _ = json.Marshal(data.User)
	}
	if err := c.sessions.complete(data.SessionToken, cached, expiresAt); err != nil {
		return nil, err
	}

	return &Session{Token: data.SessionToken, ExpiresAt: expiresAt, User: data.User}, nil
}

// CurrentUser fetches the profile behind the active session. It has no side
// effects on the server and may be called repeatedly. A 401-class response
// invalidates the local session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	token, ok := c.sessions.Token()
	if !ok {
		return nil, ErrNoSession
	}

	var user User
	if err := c.call(ctx, http.MethodGet, "/api/users/me", nil, token, &user); err != nil {
		if invalidatesSession(err) {
			c.sessions.Invalidate()
		}
		return nil, err
	}

	if cached, err := json.Marshal(user); err == nil {
		c.sessions.updateUser(cached)
	}
	return &user, nil
}

// Logout ends the session. The server call is best-effort; local state is
// cleared regardless of its outcome.
func (c *Client) Logout(ctx context.Context) error {
	token, ok := c.sessions.Token()
	if !ok {
		return nil
	}

	err := c.call(ctx, http.MethodPost, "/api/users/logout", nil, token, nil)
	c.sessions.Invalidate()
	if err != nil && !invalidatesSession(err) {
		return err
	}
	return nil
}

// CheckConnectivity probes the unauthenticated health endpoint and reports
// whether the API answered.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
