package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"vigil-ird/config"
	"vigil-ird/core/procedure"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

type IncidentsHandler struct {
	cfg       *config.AppConfig
	incidents store.IncidentsStore
	templates store.TemplatesStore
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewIncidentsHandler(cfg *config.AppConfig, incidents store.IncidentsStore, templates store.TemplatesStore, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{cfg: cfg, incidents: incidents, templates: templates, audits: audits, logger: logger}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := h.incidents.ListIncidents(r.Context(), store.IncidentFilter{
		Search:   q.Get("q"),
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("incidents list: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createIncidentPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	TemplateID  *int64 `json:"template_id"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var payload createIncidentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}

	// Attaching a procedure copies the template steps into per-incident
	// state once; later template edits never touch existing incidents.
	var tpl *procedure.Template
	var err error
	if payload.TemplateID != nil {
		tpl, err = h.templates.GetTemplate(r.Context(), *payload.TemplateID)
		if err == nil && tpl == nil {
			http.Error(w, "no such template", http.StatusBadRequest)
			return
		}
	} else if strings.TrimSpace(payload.Category) != "" {
		tpl, err = h.templates.TemplateForCategory(r.Context(), payload.Category)
	}
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("incident create template resolve: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	inc := &store.Incident{
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		Severity:    payload.Severity,
		Category:    payload.Category,
		CreatedBy:   sess.UserID,
		UpdatedBy:   sess.UserID,
	}
	var steps []procedure.StepState
	if tpl != nil {
		inc.TemplateID = &tpl.ID
		steps = procedure.NewInstance(*tpl)
	}
	if _, err := h.incidents.CreateIncident(r.Context(), inc, steps, h.cfg.Incidents.RegNoFormat); err != nil {
		if h.logger != nil {
			h.logger.Errorf("incident create: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "incidents.create", inc.RegNo)
	writeJSON(w, http.StatusCreated, map[string]any{"item": inc})
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

type updateIncidentPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Version     int    `json:"version"`
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var payload updateIncidentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if payload.Status == procedure.StatusClosed && inc.TemplateID != nil {
		http.Error(w, "close via the procedure finish flow", http.StatusConflict)
		return
	}
	inc.Title = strings.TrimSpace(payload.Title)
	inc.Description = payload.Description
	if payload.Severity != "" {
		inc.Severity = payload.Severity
	}
	if payload.Status != "" {
		inc.Status = payload.Status
	}
	inc.Category = payload.Category
	inc.UpdatedBy = sess.UserID
	if err := h.incidents.UpdateIncident(r.Context(), inc, payload.Version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "version conflict", http.StatusConflict)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "incidents.update", inc.RegNo)
	writeJSON(w, http.StatusOK, map[string]any{"item": inc})
}

// Close handles incidents without an attached procedure. Procedure
// incidents close through the finish flow so the completion gate is
// never bypassed.
func (h *IncidentsHandler) Close(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if inc.TemplateID != nil {
		http.Error(w, "close via the procedure finish flow", http.StatusConflict)
		return
	}
	closed, err := h.incidents.CloseIncident(r.Context(), id, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "already closed", http.StatusConflict)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "incidents.close", closed.RegNo)
	writeJSON(w, http.StatusOK, map[string]any{"item": closed})
}

func (h *IncidentsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events, err := h.incidents.ListIncidentTimeline(r.Context(), id, limit)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("incident %d timeline: %v", id, err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}
