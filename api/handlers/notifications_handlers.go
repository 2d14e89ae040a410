package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type NotificationsHandler struct {
	notifications store.NotificationsStore
	logger        *utils.Logger
}

func NewNotificationsHandler(notifications store.NotificationsStore, logger *utils.Logger) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, logger: logger}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, err := h.notifications.ListForUser(r.Context(), sess.UserID, q.Get("unread") == "true", limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), sess.UserID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
