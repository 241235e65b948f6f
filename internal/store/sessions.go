// ABOUTME: Session store methods for issuing and validating bearer tokens
// ABOUTME: Expiry is checked on lookup; expired rows are purged opportunistically

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession persists a new session. The caller is responsible for
// generating the token with sufficient entropy.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sessions (id, user_id, application_id, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.ApplicationID,
		session.Token,
		session.CreatedAt.Format(time.RFC3339),
		session.ExpiresAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("session token collision: %w", err)
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// GetSessionByToken retrieves a live session by its token. An expired
// session is deleted and reported as ErrNotFound.
func (s *SQLiteStore) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	query := `
		SELECT id, user_id, application_id, token, created_at, expires_at
		FROM sessions
		WHERE token = ?
	`

	var session Session
	var createdAt, expiresAt string

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.ApplicationID,
		&session.Token,
		&createdAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.CreatedAt = s.parseTime(createdAt, "created_at", session.ID)
	session.ExpiresAt = s.parseTime(expiresAt, "expires_at", session.ID)

	if session.Expired(time.Now().UTC()) {
		if err := s.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("failed to purge expired session", "id", session.ID, "error", err)
		}
		return nil, ErrNotFound
	}

	return &session, nil
}

// DeleteSession removes a session by ID. Deleting a missing session is
// not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteSessionsForUser removes all sessions belonging to a user.
func (s *SQLiteStore) DeleteSessionsForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry and returns
// the number removed. Run periodically by the server.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking expiry sweep result: %w", err)
	}

	if rows > 0 {
		s.logger.Debug("purged expired sessions", "count", rows)
	}
	return int(rows), nil
}
