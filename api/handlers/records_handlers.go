package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type RecordsHandler struct {
	records store.RecordsStore
	logger  *utils.Logger
}

func NewRecordsHandler(records store.RecordsStore, logger *utils.Logger) *RecordsHandler {
	return &RecordsHandler{records: records, logger: logger}
}

// Search backs the record picker on record_link steps.
func (h *RecordsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typeSlug := strings.TrimSpace(q.Get("type"))
	if typeSlug == "" {
		http.Error(w, "type required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, err := h.records.Search(r.Context(), typeSlug, q.Get("q"), limit)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("records search: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec store.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(rec.Type) == "" || strings.TrimSpace(rec.Display) == "" {
		http.Error(w, "record_type and display required", http.StatusBadRequest)
		return
	}
	id, err := h.records.CreateRecord(r.Context(), &rec)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	rec.ID = id
	writeJSON(w, http.StatusCreated, map[string]any{"item": rec})
}
