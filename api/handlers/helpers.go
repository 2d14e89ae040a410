package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vigil-ird/core/auth"
	"vigil-ird/core/procedure"
	"vigil-ird/core/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func idParam(r *http.Request, key string) (int64, bool) {
	raw := strings.TrimSpace(urlParam(r, key))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func sessionFrom(r *http.Request) *store.Session {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*store.Session)
	}
	return nil
}

// writeProcedureError maps the engine's error taxonomy onto HTTP
// statuses. Precondition failures carry the incomplete step list so the
// UI can point at them.
func writeProcedureError(w http.ResponseWriter, err error) {
	var verr *procedure.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error()})
		return
	}
	var aerr *procedure.AuthorizationError
	if errors.As(err, &aerr) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":      aerr.Error(),
			"step_id":    aerr.StepID,
			"step_title": aerr.Title,
		})
		return
	}
	var perr *procedure.PreconditionError
	if errors.As(err, &perr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":             perr.Error(),
			"incomplete_steps":  perr.StepIDs,
			"incomplete_titles": perr.Titles,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server error"})
}
