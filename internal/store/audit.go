// ABOUTME: Audit log entity and store methods for credential lifecycle events
// ABOUTME: Records who issued, rotated, or revoked which credential and when

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditCreateApplication AuditAction = "create_application"
	AuditUpdateApplication AuditAction = "update_application"
	AuditDeleteApplication AuditAction = "delete_application"
	AuditRotateSecret      AuditAction = "rotate_secret"
	AuditRegisterUser      AuditAction = "register_user"
	AuditUserLogin         AuditAction = "user_login"
	AuditUserLogout        AuditAction = "user_logout"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	ActorType  string         // "developer" or "application"
	ActorID    string         // who performed the action
	Action     AuditAction    // what was done
	TargetType string         // "application", "user", "session"
	TargetID   string         // ID of the affected resource
	Timestamp  time.Time      // when it happened
	Detail     map[string]any // additional context
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since   *time.Time   // entries after this time
	ActorID *string      // filter by actor
	Action  *AuditAction // filter by action type
	Limit   int          // max results (default 100)
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		detailJSON = string(data)
	}

	query := `
		INSERT INTO audit_log (id, actor_type, actor_id, action, target_type, target_id, timestamp, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.ActorType,
		e.ActorID,
		string(e.Action),
		e.TargetType,
		e.TargetID,
		e.Timestamp.Format(time.RFC3339),
		nullString(detailJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListAuditLog returns audit entries matching the filter, newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	query := `
		SELECT id, actor_type, actor_id, action, target_type, target_id, timestamp, detail_json
		FROM audit_log
		WHERE 1=1
	`
	var args []any

	if filter.Since != nil {
		query += ` AND timestamp > ?`
		args = append(args, filter.Since.Format(time.RFC3339))
	}
	if filter.ActorID != nil {
		query += ` AND actor_id = ?`
		args = append(args, *filter.ActorID)
	}
	if filter.Action != nil {
		query += ` AND action = ?`
		args = append(args, string(*filter.Action))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var action, timestamp string
		var detailJSON *string

		if err := rows.Scan(
			&e.ID,
			&e.ActorType,
			&e.ActorID,
			&action,
			&e.TargetType,
			&e.TargetID,
			&timestamp,
			&detailJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Action = AuditAction(action)
		e.Timestamp = s.parseTime(timestamp, "timestamp", e.ID)
		if detailJSON != nil {
			if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
				s.logger.Warn("failed to unmarshal audit detail", "id", e.ID, "error", err)
			}
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
