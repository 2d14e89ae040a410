package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type ShiftsHandler struct {
	shifts store.ShiftsStore
	audits store.AuditStore
	logger *utils.Logger
}

func NewShiftsHandler(shifts store.ShiftsStore, audits store.AuditStore, logger *utils.Logger) *ShiftsHandler {
	return &ShiftsHandler{shifts: shifts, audits: audits, logger: logger}
}

func (h *ShiftsHandler) List(w http.ResponseWriter, r *http.Request) {
	includeEnded := r.URL.Query().Get("include_ended") == "true"
	items, err := h.shifts.ListShifts(r.Context(), includeEnded)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// OnDuty reports the current roster; the assistance picker uses it.
func (h *ShiftsHandler) OnDuty(w http.ResponseWriter, r *http.Request) {
	users, err := h.shifts.ActiveUsersNow(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

type createShiftPayload struct {
	UserID   int64     `json:"user_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

func (h *ShiftsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var payload createShiftPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.UserID <= 0 || !payload.EndsAt.After(payload.StartsAt) {
		http.Error(w, "user_id and a valid window required", http.StatusBadRequest)
		return
	}
	shift := &store.Shift{UserID: payload.UserID, StartsAt: payload.StartsAt, EndsAt: payload.EndsAt}
	id, err := h.shifts.CreateShift(r.Context(), shift)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	shift.ID = id
	_ = h.audits.Log(r.Context(), sess.Username, "shifts.create", "")
	writeJSON(w, http.StatusCreated, map[string]any{"item": shift})
}
