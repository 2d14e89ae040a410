package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vigil-ird/core/rbac"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type AccountsHandler struct {
	users         store.UsersStore
	roles         store.RolesStore
	audits        store.AuditStore
	logger        *utils.Logger
	refreshPolicy func() error
}

func NewAccountsHandler(users store.UsersStore, roles store.RolesStore, audits store.AuditStore, logger *utils.Logger, refreshPolicy func() error) *AccountsHandler {
	return &AccountsHandler{users: users, roles: roles, audits: audits, logger: logger, refreshPolicy: refreshPolicy}
}

func (h *AccountsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.users.ListUsers(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createUserPayload struct {
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	RoleIDs  []int64 `json:"role_ids"`
}

func (h *AccountsHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var payload createUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	payload.Username = strings.ToLower(strings.TrimSpace(payload.Username))
	if payload.Username == "" || payload.Password == "" {
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	}
	user := &store.User{Username: payload.Username, FullName: payload.FullName, Email: payload.Email}
	id, err := h.users.CreateUser(r.Context(), user, payload.Password, payload.RoleIDs)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("user create: %v", err)
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "accounts.user_create", payload.Username)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "item": user})
}

type setRolesPayload struct {
	RoleIDs []int64 `json:"role_ids"`
}

func (h *AccountsHandler) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var payload setRolesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.users.SetRoles(r.Context(), id, payload.RoleIDs); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "accounts.roles_set", "")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AccountsHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	items, err := h.roles.ListRoles(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createRolePayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (h *AccountsHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var payload createRolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	perms, invalid := rbac.NormalizePermissionNames(payload.Permissions)
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown permissions", "invalid": invalid})
		return
	}
	id, err := h.roles.CreateRole(r.Context(), payload.Name, payload.Description, perms)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if h.refreshPolicy != nil {
		if err := h.refreshPolicy(); err != nil && h.logger != nil {
			h.logger.Warnf("policy refresh after role create: %v", err)
		}
	}
	_ = h.audits.Log(r.Context(), sess.Username, "accounts.role_create", payload.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}
