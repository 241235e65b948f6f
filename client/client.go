// ABOUTME: Signed HTTP request construction and envelope decoding
// ABOUTME: Every call carries X-Public-Key, X-Timestamp, and X-Signature

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/signing"
)

// defaultTimeout bounds every request; expiry surfaces as a TransportError.
const defaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Credentials identifies an application to the API.
type Credentials struct {
	PublicKey string
	SecretKey string
}

// Client calls the keygate API on behalf of one application. Each Client
// holds at most one user session; create separate Clients for separate
// sessions.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	sessions   *SessionManager
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The provided client
// should enforce a bounded timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTokenStore sets where the session token and cached profile persist.
// The default keeps them in memory for the life of the Client.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.sessions = NewSessionManager(ts) }
}

// WithClock overrides the wall clock used for signing timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for the API at baseURL. The secret key is required;
// a Client without one cannot sign and refuses to construct.
func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	if creds.SecretKey == "" {
		return nil, ErrNoSecretKey
	}
	if creds.PublicKey == "" {
		return nil, fmt.Errorf("public key is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must include scheme and host")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessions == nil {
		c.sessions = NewSessionManager(NewMemoryTokenStore())
	}
	return c, nil
}

// Sessions exposes the Client's session manager, mainly for inspecting
// state in callers and tests.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// envelope is the wire response shape shared by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do sends one signed request and returns the raw body and status. The
// signing path excludes query string and host; the timestamp is wall-clock
// milliseconds at send time.
func (c *Client) do(ctx context.Context, method, path string, body []byte, sessionToken string) (int, []byte, error) {
	ts := c.now().UnixMilli()
	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}
	sig, err := signing.Sign(c.creds.SecretKey, method, signPath, ts, body)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Public-Key", c.creds.PublicKey)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", sig)
	if sessionToken != "" {
		req.Header.Set("X-Session-Token", sessionToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	return resp.StatusCode, raw, nil
}

// call sends a signed request and decodes the envelope into out. Non-2xx
// responses and success:false envelopes become StatusErrors carrying the
// server's error string.
func (c *Client) call(ctx context.Context, method, path string, reqBody any, sessionToken string, out any) error {
	var body []byte
	if reqBody != nil {
		var err error
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	status, raw, err := c.do(ctx, method, path, body, sessionToken)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if status < 200 || status >= 300 {
			return &StatusError{Status: status}
		}
		return &DecodeError{Err: err}
	}

	if status < 200 || status >= 300 || !env.Success {
		return &StatusError{Status: status, Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}
