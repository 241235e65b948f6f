// ABOUTME: Developer entity store methods for the management API
// ABOUTME: Developers own applications and authenticate with email/password

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateDeveloper creates a new developer account.
// Returns ErrEmailExists if the email is already registered.
func (s *SQLiteStore) CreateDeveloper(ctx context.Context, dev *Developer) error {
	if dev.ID == "" {
		dev.ID = uuid.New().String()
	}
	if dev.CreatedAt.IsZero() {
		dev.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO developers (id, first_name, last_name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		dev.ID,
		dev.FirstName,
		dev.LastName,
		dev.Email,
		dev.PasswordHash,
		dev.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting developer: %w", err)
	}

	s.logger.Debug("created developer", "id", dev.ID, "email", dev.Email)
	return nil
}

// GetDeveloper retrieves a developer by ID.
// Returns ErrNotFound if the developer doesn't exist.
func (s *SQLiteStore) GetDeveloper(ctx context.Context, id string) (*Developer, error) {
	query := `
		SELECT id, first_name, last_name, email, password_hash, created_at
		FROM developers
		WHERE id = ?
	`
	return s.scanDeveloper(s.db.QueryRowContext(ctx, query, id))
}

// GetDeveloperByEmail retrieves a developer by email.
// Returns ErrNotFound if no developer has that email.
func (s *SQLiteStore) GetDeveloperByEmail(ctx context.Context, email string) (*Developer, error) {
	query := `
		SELECT id, first_name, last_name, email, password_hash, created_at
		FROM developers
		WHERE email = ?
	`
	return s.scanDeveloper(s.db.QueryRowContext(ctx, query, email))
}

// CountDevelopers returns the total number of developer accounts.
// Used by the bootstrap command to detect a fresh install.
func (s *SQLiteStore) CountDevelopers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM developers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting developers: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) scanDeveloper(row *sql.Row) (*Developer, error) {
	var dev Developer
	var createdAt string

	err := row.Scan(
		&dev.ID,
		&dev.FirstName,
		&dev.LastName,
		&dev.Email,
		&dev.PasswordHash,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying developer: %w", err)
	}

	dev.CreatedAt = s.parseTime(createdAt, "created_at", dev.ID)
	return &dev, nil
}

// parseTime parses an RFC3339 timestamp column, returning the zero time
// (and logging) when the stored value is malformed.
func (s *SQLiteStore) parseTime(value, column, id string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn("failed to parse timestamp column", "column", column, "id", id, "error", err)
		return time.Time{}
	}
	return parsed
}
