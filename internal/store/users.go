// ABOUTME: End-user store methods scoped to tenant applications
// ABOUTME: Emails are unique per application, never across tenants

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser creates a new end user under an application.
// Returns ErrEmailExists if the email is taken within that application.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, application_id, email, first_name, last_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.ApplicationID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "application_id", user.ApplicationID)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, application_id, email, first_name, last_name, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email within an application.
// Returns ErrNotFound if no such user exists.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, applicationID, email string) (*User, error) {
	query := `
		SELECT id, application_id, email, first_name, last_name, password_hash, created_at
		FROM users
		WHERE application_id = ? AND email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, applicationID, email))
}

// ListUsers returns all users of an application, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context, applicationID string) ([]*User, error) {
	query := `
		SELECT id, application_id, email, first_name, last_name, password_hash, created_at
		FROM users
		WHERE application_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var createdAt string
		if err := rows.Scan(
			&user.ID,
			&user.ApplicationID,
			&user.Email,
			&user.FirstName,
			&user.LastName,
			&user.PasswordHash,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		user.CreatedAt = s.parseTime(createdAt, "created_at", user.ID)
		users = append(users, &user)
	}

	return users, rows.Err()
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var createdAt string

	err := row.Scan(
		&user.ID,
		&user.ApplicationID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt = s.parseTime(createdAt, "created_at", user.ID)
	return &user, nil
}
