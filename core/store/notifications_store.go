package store

import (
	"context"
	"database/sql"
	"time"
)

type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  string     `json:"priority"`
	DeepLink  string     `json:"deep_link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationsStore interface {
	CreateNotification(ctx context.Context, n *Notification) (int64, error)
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
}

type notificationsStore struct {
	db *sql.DB
}

func NewNotificationsStore(db *sql.DB) NotificationsStore {
	return &notificationsStore{db: db}
}

func (s *notificationsStore) CreateNotification(ctx context.Context, n *Notification) (int64, error) {
	if n.Priority == "" {
		n.Priority = "normal"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications(user_id, title, message, priority, deep_link, created_at)
		VALUES(?,?,?,?,?,?)`,
		n.UserID, n.Title, n.Message, n.Priority, n.DeepLink, now)
	if err != nil {
		return 0, err
	}
	n.CreatedAt = now
	return res.LastInsertId()
}

func (s *notificationsStore) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, user_id, title, message, priority, deep_link, read_at, created_at
		FROM notifications WHERE user_id=?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Priority, &n.DeepLink, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *notificationsStore) MarkRead(ctx context.Context, userID, notificationID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=? WHERE id=? AND user_id=? AND read_at IS NULL`,
		time.Now().UTC(), notificationID, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
