package store

import (
	"context"
	"database/sql"
	"time"
)

type AuditEvent struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore is the global application audit log. The per-incident
// procedure trail lives in incident_timeline instead.
type AuditStore interface {
	Log(ctx context.Context, username, action, details string) error
	List(ctx context.Context, limit int) ([]AuditEvent, error)
}

type auditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Log(ctx context.Context, username, action, details string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log(username, action, details, created_at) VALUES(?,?,?,?)`,
		username, action, details, time.Now().UTC())
	return err
}

func (s *auditStore) List(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, action, details, created_at FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Username, &ev.Action, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Details = details.String
		items = append(items, ev)
	}
	return items, rows.Err()
}
