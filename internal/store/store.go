// ABOUTME: Store interface and entity types for keygate persistence
// ABOUTME: Defines Developer, Application, User, Session and the Store contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a developer or user with an email
// that is already registered in the same scope.
var ErrEmailExists = errors.New("email already exists")

// Developer is an account that owns applications and accesses the
// management API.
type Developer struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// Application is a tenant application identified to the auth API by its
// key pair. SecretKey is disclosed only at creation and rotation; read
// paths must use Redacted.
type Application struct {
	ID          string
	DeveloperID string
	Name        string
	Domain      string
	PublicKey   string // "pk_" prefixed
	SecretKey   string // "sk_" prefixed, never re-displayed after issuance
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Redacted returns a copy of the application with the secret key cleared,
// for use in list and read responses.
func (a *Application) Redacted() *Application {
	clone := *a
	clone.SecretKey = ""
	return &clone
}

// User is an end user of a tenant application. Emails are unique per
// application, not globally.
type User struct {
	ID            string
	ApplicationID string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string // bcrypt hash
	CreatedAt     time.Time
}

// Session is a bearer credential for an authenticated user. The token is
// crypto-random and opaque; expiry is enforced on every lookup.
type Session struct {
	ID            string
	UserID        string
	ApplicationID string
	Token         string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines the interface for keygate persistence.
type Store interface {
	// Developers
	CreateDeveloper(ctx context.Context, dev *Developer) error
	GetDeveloper(ctx context.Context, id string) (*Developer, error)
	GetDeveloperByEmail(ctx context.Context, email string) (*Developer, error)
	CountDevelopers(ctx context.Context) (int, error)

	// Applications
	CreateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id, developerID string) (*Application, error)
	GetApplicationByPublicKey(ctx context.Context, publicKey string) (*Application, error)
	ListApplications(ctx context.Context, developerID string) ([]*Application, error)
	UpdateApplication(ctx context.Context, app *Application) error
	DeleteApplication(ctx context.Context, id, developerID string) error
	RotateApplicationSecret(ctx context.Context, id, developerID, newSecretKey string) error

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, applicationID, email string) (*User, error)
	ListUsers(ctx context.Context, applicationID string) ([]*User, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Audit log
	AppendAuditLog(ctx context.Context, entry *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}
