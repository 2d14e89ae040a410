package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type FormsHandler struct {
	forms  store.FormsStore
	logger *utils.Logger
}

func NewFormsHandler(forms store.FormsStore, logger *utils.Logger) *FormsHandler {
	return &FormsHandler{forms: forms, logger: logger}
}

func (h *FormsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form store.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(form.Title) == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}
	id, err := h.forms.CreateForm(r.Context(), &form)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	form.ID = id
	writeJSON(w, http.StatusCreated, map[string]any{"item": form})
}

func (h *FormsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	form, err := h.forms.GetForm(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if form == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": form})
}

// GetSubmission resolves a submission linked from a step execution.
func (h *FormsHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "submission_id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	sub, err := h.forms.GetSubmission(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if sub == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": sub})
}
