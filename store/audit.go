package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id,omitempty"`
	PolicyName string          `json:"policy_name"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Audit appends an entry to the audit log. details is marshalled to JSON;
// nil is stored as {}.
func (s *Store) Audit(ctx context.Context, sessionID, policyName, action string, details any) error {
	raw := []byte("{}")
	if details != nil {
		var err error
		if raw, err = json.Marshal(details); err != nil {
			return fmt.Errorf("store: marshal audit details: %w", err)
		}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO audit_log (id, session_id, policy_name, action, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ids(), sessionID, policyName, action, string(raw), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("store: audit: %w", err)
	}
	return nil
}

// AuditLog returns the entries of a session, oldest first.
func (s *Store) AuditLog(ctx context.Context, sessionID string) ([]AuditEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, policy_name, action, details, created_at
		FROM audit_log WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var details string
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.PolicyName, &e.Action, &details, &created); err != nil {
			return nil, fmt.Errorf("store: scan audit: %w", err)
		}
		e.Details = json.RawMessage(details)
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
