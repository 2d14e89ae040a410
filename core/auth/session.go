package auth

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"vigil-ird/config"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type contextKey string

// SessionContextKey carries the *store.Session attached by the auth
// middleware.
const SessionContextKey contextKey = "vigil.session"

type SessionManager struct {
	sessions store.SessionsStore
	cfg      *config.AppConfig
	logger   *utils.Logger
}

func NewSessionManager(sessions store.SessionsStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, roles []string) (*store.Session, error) {
	id := uuid.Must(uuid.NewV4()).String()
	now := utils.NowUTC()
	sess := &store.Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     roles,
		ExpiresAt: now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve returns the live session for the id, refreshing its sliding
// expiry. Expired or revoked sessions resolve to nil.
func (m *SessionManager) Resolve(ctx context.Context, sessID string) (*store.Session, error) {
	sess, err := m.sessions.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	now := utils.NowUTC()
	if !sess.ExpiresAt.After(now) {
		_ = m.sessions.RevokeSession(ctx, sessID)
		return nil, nil
	}
	expires := now.Add(m.cfg.EffectiveSessionTTL())
	if err := m.sessions.TouchSession(ctx, sessID, expires); err != nil {
		if m.logger != nil {
			m.logger.Warnf("session touch failed: %v", err)
		}
	} else {
		sess.ExpiresAt = expires
	}
	return sess, nil
}

// Rotate replaces the session id after privilege changes.
func (m *SessionManager) Rotate(ctx context.Context, sessID string) (*store.Session, error) {
	old, err := m.sessions.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, errors.New("session not found")
	}
	_ = m.sessions.RevokeSession(ctx, sessID)
	return m.Create(ctx, &store.User{ID: old.UserID, Username: old.Username}, old.Roles)
}

func (m *SessionManager) Delete(ctx context.Context, sessID string) error {
	return m.sessions.RevokeSession(ctx, sessID)
}

// PurgeExpired drops revoked and expired rows; the scheduler calls it.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.PurgeExpired(ctx, utils.NowUTC())
}
