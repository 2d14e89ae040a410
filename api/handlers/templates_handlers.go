package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vigil-ird/core/procedure"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type TemplatesHandler struct {
	templates store.TemplatesStore
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewTemplatesHandler(templates store.TemplatesStore, audits store.AuditStore, logger *utils.Logger) *TemplatesHandler {
	return &TemplatesHandler{templates: templates, audits: audits, logger: logger}
}

func (h *TemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *TemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	tpl, err := h.templates.GetTemplate(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if tpl == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": tpl})
}

type createTemplatePayload struct {
	Name     string                     `json:"name"`
	Category string                     `json:"category"`
	Steps    []procedure.StepDefinition `json:"steps"`
}

func (h *TemplatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var payload createTemplatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if len(payload.Steps) == 0 {
		http.Error(w, "at least one step required", http.StatusBadRequest)
		return
	}
	tpl := &store.ProcedureTemplate{
		Name:      strings.TrimSpace(payload.Name),
		Category:  payload.Category,
		CreatedBy: &sess.UserID,
	}
	id, err := h.templates.CreateTemplate(r.Context(), tpl, payload.Steps)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("template create: %v", err)
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "templates.create", tpl.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "item": tpl})
}
