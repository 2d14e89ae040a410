package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionsStore interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionsStore struct {
	db *sql.DB
}

func NewSessionsStore(db *sql.DB) SessionsStore {
	return &sessionsStore{db: db}
}

func (s *sessionsStore) CreateSession(ctx context.Context, sess *Session) error {
	roles, err := json.Marshal(sess.Roles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, username, roles, created_at, last_seen_at, expires_at)
		VALUES(?,?,?,?,?,?,?)`,
		sess.ID, sess.UserID, sess.Username, string(roles), now, now, sess.ExpiresAt.UTC())
	if err == nil {
		sess.CreatedAt = now
	}
	return err
}

func (s *sessionsStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var roles string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, roles, expires_at, created_at
		FROM sessions WHERE id=? AND revoked=0`, id).
		Scan(&sess.ID, &sess.UserID, &sess.Username, &roles, &sess.ExpiresAt, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &sess.Roles); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sessionsStore) TouchSession(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at=?, last_seen_at=? WHERE id=? AND revoked=0`,
		expiresAt.UTC(), time.Now().UTC(), id)
	return err
}

func (s *sessionsStore) RevokeSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked=1 WHERE id=?`, id)
	return err
}

func (s *sessionsStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at<=? OR revoked=1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
