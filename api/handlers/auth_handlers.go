package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vigil-ird/config"
	"vigil-ird/core/auth"
	"vigil-ird/core/rbac"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	audits         store.AuditStore
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sm *auth.SessionManager, policy *rbac.Policy, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessionManager: sm, policy: policy, audits: audits, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if cred.Username == "" || cred.Password == "" {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	user, err := h.users.VerifyPassword(r.Context(), cred.Username, cred.Password)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("auth login verify failed for %s: %v", cred.Username, err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		_ = h.audits.Log(r.Context(), cred.Username, "auth.login_failed", "invalid credentials")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	_, roles, err := h.users.Get(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), user, roles)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("auth login session create failed for %s: %v", cred.Username, err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), user.Username, "auth.login_success", "")
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":        user.ID,
			"username":  user.Username,
			"full_name": user.FullName,
			"roles":     roles,
		},
		"expires_at": sess.ExpiresAt,
	})
}

const SessionCookieName = "vigil_session"

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		_ = h.sessionManager.Delete(r.Context(), cookie.Value)
	}
	if sess := sessionFrom(r); sess != nil {
		_ = h.audits.Log(r.Context(), sess.Username, "auth.logout", "")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, roles, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil || user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"full_name": user.FullName,
		"roles":     roles,
	})
}
