// ABOUTME: Session state machine and persisted token storage
// ABOUTME: Holds at most one session; a new login overwrites the old

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State describes where a SessionManager is in the auth lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TokenStore persists exactly two pieces of client state: the session token
// and the cached user profile blob. Implementations must write both
// atomically; a partially written session is worse than none.
type TokenStore interface {
	Load() (token string, user []byte, expiresAt time.Time, err error)
	Save(token string, user []byte, expiresAt time.Time) error
	Clear() error
}

// MemoryTokenStore keeps session state for the life of the process.
type MemoryTokenStore struct {
	mu        sync.Mutex
	token     string
	user      []byte
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load() (string, []byte, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, append([]byte(nil), m.user...), m.expiresAt, nil
}

func (m *MemoryTokenStore) Save(token string, user []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = append([]byte(nil), user...)
	m.expiresAt = expiresAt
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	m.expiresAt = time.Time{}
	return nil
}

// fileSession is the on-disk shape for FileTokenStore.
type fileSession struct {
	Token     string          `json:"token"`
	User      json.RawMessage `json:"user,omitempty"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// FileTokenStore persists session state as a 0600 JSON file. Writes go
// through a temp file and rename so a crash never leaves a half-written
// session.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (f *FileTokenStore) Load() (string, []byte, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, time.Time{}, nil
		}
		return "", nil, time.Time{}, fmt.Errorf("reading session file: %w", err)
	}

	var fs fileSession
	if err := json.Unmarshal(raw, &fs); err != nil {
		return "", nil, time.Time{}, fmt.Errorf("parsing session file: %w", err)
	}
	return fs.Token, fs.User, fs.ExpiresAt, nil
}

func (f *FileTokenStore) Save(token string, user []byte, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(fileSession{Token: token, User: user, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// SessionManager tracks one session through the auth lifecycle and mirrors
// it into a TokenStore. It is an explicit instance: construct one per
// logical session rather than sharing process-global state.
type SessionManager struct {
	mu        sync.Mutex
	store     TokenStore
	state     State
	token     string
	user      []byte
	expiresAt time.Time
	now       func() time.Time
}

// NewSessionManager builds a manager over the given store. A previously
// persisted, unexpired session is resumed as Authenticated.
func NewSessionManager(store TokenStore) *SessionManager {
	m := &SessionManager{
		store: store,
		state: StateAnonymous,
		now:   time.Now,
	}
	token, user, expiresAt, err := store.Load()
	if err != nil || token == "" {
		return m
	}
	if !expiresAt.IsZero() && !expiresAt.After(m.now()) {
		_ = store.Clear()
		return m
	}
	m.state = StateAuthenticated
	m.token = token
	m.user = user
	m.expiresAt = expiresAt
	return m
}

// State reports the current lifecycle state. An Authenticated session whose
// expiry has elapsed reports Expired; the next Token call collapses it to
// Anonymous.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticated && m.expired() {
		return StateExpired
	}
	return m.state
}

// Token returns the active session token. An expired session is cleared and
// reported as absent.
func (m *SessionManager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated {
		return "", false
	}
	if m.expired() {
		m.clearLocked()
		return "", false
	}
	return m.token, true
}

// CachedUser returns the persisted profile blob. It is a hint only: it may
// be stale, and privileged decisions must re-fetch via the API.
func (m *SessionManager) CachedUser() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated || len(m.user) == 0 {
		return nil, false
	}
	return append([]byte(nil), m.user...), true
}

// beginAuth marks a login or registration in flight.
func (m *SessionManager) beginAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAuthenticating
}

// complete installs a fully validated session, replacing any prior one.
// Persistence happens before the in-memory state flips so a crash between
// the two never leaves a token the store does not know about.
func (m *SessionManager) complete(token string, user []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(token, user, expiresAt); err != nil {
		m.state = StateAnonymous
		return fmt.Errorf("persisting session: %w", err)
	}
	m.state = StateAuthenticated
	m.token = token
	m.user = append([]byte(nil), user...)
	m.expiresAt = expiresAt
	return nil
}

// updateUser refreshes the cached profile for the current session.
func (m *SessionManager) updateUser(user []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated {
		return
	}
	m.user = append([]byte(nil), user...)
	_ = m.store.Save(m.token, m.user, m.expiresAt)
}

// fail returns to Anonymous after an unsuccessful login or registration.
func (m *SessionManager) fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAuthenticating {
		m.state = StateAnonymous
	}
}

// Invalidate drops the session locally: explicit logout, a 401 from the
// server, or passive expiry all land here.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *SessionManager) clearLocked() {
	_ = m.store.Clear()
	m.state = StateAnonymous
	m.token = ""
	m.user = nil
	m.expiresAt = time.Time{}
}

func (m *SessionManager) expired() bool {
	return !m.expiresAt.IsZero() && !m.expiresAt.After(m.now())
}
