// ABOUTME: Application credential store methods including key-pair persistence
// ABOUTME: Secret keys are written at creation/rotation and read only for verification

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateApplication creates a new application with its key pair.
func (s *SQLiteStore) CreateApplication(ctx context.Context, app *Application) error {
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

	query := `
		INSERT INTO applications (id, developer_id, name, domain, public_key, secret_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		app.ID,
		app.DeveloperID,
		app.Name,
		app.Domain,
		app.PublicKey,
		app.SecretKey,
		app.CreatedAt.Format(time.RFC3339),
		app.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("application with public key %q already exists", app.PublicKey)
		}
		return fmt.Errorf("inserting application: %w", err)
	}

	s.logger.Debug("created application", "id", app.ID, "developer_id", app.DeveloperID, "name", app.Name)
	return nil
}

// GetApplication retrieves an application by ID, scoped to its owning
// developer. Returns ErrNotFound if it doesn't exist or belongs to a
// different developer.
func (s *SQLiteStore) GetApplication(ctx context.Context, id, developerID string) (*Application, error) {
	query := `
		SELECT id, developer_id, name, domain, public_key, secret_key, created_at, updated_at
		FROM applications
		WHERE id = ? AND developer_id = ?
	`
	return s.scanApplication(s.db.QueryRowContext(ctx, query, id, developerID))
}

// GetApplicationByPublicKey retrieves an application by its public key.
// This is the lookup used by signed-request verification; the returned
// record includes the secret key.
func (s *SQLiteStore) GetApplicationByPublicKey(ctx context.Context, publicKey string) (*Application, error) {
	query := `
		SELECT id, developer_id, name, domain, public_key, secret_key, created_at, updated_at
		FROM applications
		WHERE public_key = ?
	`
	return s.scanApplication(s.db.QueryRowContext(ctx, query, publicKey))
}

// ListApplications returns all applications owned by a developer,
// newest first.
func (s *SQLiteStore) ListApplications(ctx context.Context, developerID string) ([]*Application, error) {
	query := `
		SELECT id, developer_id, name, domain, public_key, secret_key, created_at, updated_at
		FROM applications
		WHERE developer_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, developerID)
	if err != nil {
		return nil, fmt.Errorf("querying applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		var app Application
		var createdAt, updatedAt string
		if err := rows.Scan(
			&app.ID,
			&app.DeveloperID,
			&app.Name,
			&app.Domain,
			&app.PublicKey,
			&app.SecretKey,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		app.CreatedAt = s.parseTime(createdAt, "created_at", app.ID)
		app.UpdatedAt = s.parseTime(updatedAt, "updated_at", app.ID)
		apps = append(apps, &app)
	}

	return apps, rows.Err()
}

// UpdateApplication updates an application's name and domain. Key material
// is never touched here; use RotateApplicationSecret for that.
// Returns ErrNotFound if the application doesn't exist for this developer.
func (s *SQLiteStore) UpdateApplication(ctx context.Context, app *Application) error {
	query := `
		UPDATE applications
		SET name = ?, domain = ?, updated_at = ?
		WHERE id = ? AND developer_id = ?
	`

	app.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		app.Name,
		app.Domain,
		app.UpdatedAt.Format(time.RFC3339),
		app.ID,
		app.DeveloperID,
	)
	if err != nil {
		return fmt.Errorf("updating application: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteApplication deletes an application and, via foreign-key cascade,
// its users and sessions. Returns ErrNotFound if the application doesn't
// exist for this developer.
func (s *SQLiteStore) DeleteApplication(ctx context.Context, id, developerID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM applications WHERE id = ? AND developer_id = ?`, id, developerID)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted application", "id", id, "developer_id", developerID)
	return nil
}

// RotateApplicationSecret replaces an application's secret key. The old key
// stops verifying immediately. Returns ErrNotFound if the application
// doesn't exist for this developer.
func (s *SQLiteStore) RotateApplicationSecret(ctx context.Context, id, developerID, newSecretKey string) error {
	query := `
		UPDATE applications
		SET secret_key = ?, updated_at = ?
		WHERE id = ? AND developer_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		newSecretKey,
		time.Now().UTC().Format(time.RFC3339),
		id,
		developerID,
	)
	if err != nil {
		return fmt.Errorf("rotating application secret: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rotate result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Info("rotated application secret", "id", id, "developer_id", developerID)
	return nil
}

func (s *SQLiteStore) scanApplication(row *sql.Row) (*Application, error) {
	var app Application
	var createdAt, updatedAt string

	err := row.Scan(
		&app.ID,
		&app.DeveloperID,
		&app.Name,
		&app.Domain,
		&app.PublicKey,
		&app.SecretKey,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying application: %w", err)
	}

	app.CreatedAt = s.parseTime(createdAt, "created_at", app.ID)
	app.UpdatedAt = s.parseTime(updatedAt, "updated_at", app.ID)
	return &app, nil
}
