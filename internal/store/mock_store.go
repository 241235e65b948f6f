// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows handler tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu           sync.RWMutex
	developers   map[string]*Developer  // keyed by developer ID
	devByEmail   map[string]string      // email -> developer ID
	applications map[string]*Application
	appByPubKey  map[string]string // public key -> application ID
	users        map[string]*User
	userByEmail  map[string]string // "appID:email" -> user ID
	sessions     map[string]*Session
	sessByToken  map[string]string // token -> session ID
	audit        []*AuditEntry
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		developers:   make(map[string]*Developer),
		devByEmail:   make(map[string]string),
		applications: make(map[string]*Application),
		appByPubKey:  make(map[string]string),
		users:        make(map[string]*User),
		userByEmail:  make(map[string]string),
		sessions:     make(map[string]*Session),
		sessByToken:  make(map[string]string),
	}
}

// CreateDeveloper stores a new developer.
func (m *MockStore) CreateDeveloper(ctx context.Context, dev *Developer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devByEmail[dev.Email]; ok {
		return ErrEmailExists
	}
	if dev.ID == "" {
		dev.ID = uuid.New().String()
	}
	if dev.CreatedAt.IsZero() {
		dev.CreatedAt = time.Now().UTC()
	}

	d := *dev
	m.developers[d.ID] = &d
	m.devByEmail[d.Email] = d.ID
	return nil
}

// GetDeveloper retrieves a developer by ID.
func (m *MockStore) GetDeveloper(ctx context.Context, id string) (*Developer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.developers[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *d
	return &result, nil
}

// GetDeveloperByEmail retrieves a developer by email.
func (m *MockStore) GetDeveloperByEmail(ctx context.Context, email string) (*Developer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.devByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.developers[id]
	return &result, nil
}

// CountDevelopers returns the number of stored developers.
func (m *MockStore) CountDevelopers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.developers), nil
}

// CreateApplication stores a new application.
func (m *MockStore) CreateApplication(ctx context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = now
	}

	a := *app
	m.applications[a.ID] = &a
	m.appByPubKey[a.PublicKey] = a.ID
	return nil
}

// GetApplication retrieves an application by ID scoped to a developer.
func (m *MockStore) GetApplication(ctx context.Context, id, developerID string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applications[id]
	if !ok || a.DeveloperID != developerID {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// GetApplicationByPublicKey retrieves an application by public key.
func (m *MockStore) GetApplicationByPublicKey(ctx context.Context, publicKey string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.appByPubKey[publicKey]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.applications[id]
	return &result, nil
}

// ListApplications returns a developer's applications, newest first.
func (m *MockStore) ListApplications(ctx context.Context, developerID string) ([]*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var apps []*Application
	for _, a := range m.applications {
		if a.DeveloperID == developerID {
			result := *a
			apps = append(apps, &result)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

// UpdateApplication updates an application's name and domain.
func (m *MockStore) UpdateApplication(ctx context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.applications[app.ID]
	if !ok || existing.DeveloperID != app.DeveloperID {
		return ErrNotFound
	}
	existing.Name = app.Name
	existing.Domain = app.Domain
	existing.UpdatedAt = time.Now().UTC()
	app.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteApplication removes an application and its users and sessions.
func (m *MockStore) DeleteApplication(ctx context.Context, id, developerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.applications[id]
	if !ok || a.DeveloperID != developerID {
		return ErrNotFound
	}
	delete(m.appByPubKey, a.PublicKey)
	delete(m.applications, id)

	for uid, u := range m.users {
		if u.ApplicationID == id {
			delete(m.userByEmail, u.ApplicationID+":"+u.Email)
			delete(m.users, uid)
		}
	}
	for sid, s := range m.sessions {
		if s.ApplicationID == id {
			delete(m.sessByToken, s.Token)
			delete(m.sessions, sid)
		}
	}
	return nil
}

// RotateApplicationSecret replaces an application's secret key.
func (m *MockStore) RotateApplicationSecret(ctx context.Context, id, developerID, newSecretKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.applications[id]
	if !ok || a.DeveloperID != developerID {
		return ErrNotFound
	}
	a.SecretKey = newSecretKey
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateUser stores a new end user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := user.ApplicationID + ":" + user.Email
	if _, ok := m.userByEmail[key]; ok {
		return ErrEmailExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	u := *user
	m.users[u.ID] = &u
	m.userByEmail[key] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByEmail retrieves a user by email within an application.
func (m *MockStore) GetUserByEmail(ctx context.Context, applicationID, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.userByEmail[applicationID+":"+email]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.users[id]
	return &result, nil
}

// ListUsers returns an application's users, newest first.
func (m *MockStore) ListUsers(ctx context.Context, applicationID string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, u := range m.users {
		if u.ApplicationID == applicationID {
			result := *u
			users = append(users, &result)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	s := *session
	m.sessions[s.ID] = &s
	m.sessByToken[s.Token] = s.ID
	return nil
}

// GetSessionByToken retrieves a live session; expired sessions are removed.
func (m *MockStore) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.sessByToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	s := m.sessions[id]
	if s.Expired(time.Now().UTC()) {
		delete(m.sessByToken, s.Token)
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	result := *s
	return &result, nil
}

// DeleteSession removes a session by ID.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		delete(m.sessByToken, s.Token)
		delete(m.sessions, id)
	}
	return nil
}

// DeleteSessionsForUser removes all of a user's sessions.
func (m *MockStore) DeleteSessionsForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessByToken, s.Token)
			delete(m.sessions, id)
		}
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessByToken, s.Token)
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

// AppendAuditLog appends an audit entry.
func (m *MockStore) AppendAuditLog(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	e := *entry
	m.audit = append(m.audit, &e)
	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*AuditEntry
	for _, e := range m.audit {
		if filter.Since != nil && !e.Timestamp.After(*filter.Since) {
			continue
		}
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		result := *e
		entries = append(entries, &result)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
