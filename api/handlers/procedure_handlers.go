package handlers

import (
	"encoding/json"
	"net/http"

	"vigil-ird/core/procedure"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

// ProcedureHandler exposes the step execution engine: joined step
// views, completion, form and record variants, the assistance flow and
// the finish gate.
type ProcedureHandler struct {
	procedures *procedure.Orchestrator
	users      store.UsersStore
	logger     *utils.Logger
}

func NewProcedureHandler(procedures *procedure.Orchestrator, users store.UsersStore, logger *utils.Logger) *ProcedureHandler {
	return &ProcedureHandler{procedures: procedures, users: users, logger: logger}
}

// actor builds the engine actor from the session, pulling the display
// name from the user record when available.
func (h *ProcedureHandler) actor(r *http.Request) procedure.Actor {
	sess := sessionFrom(r)
	if sess == nil {
		return procedure.Actor{}
	}
	actor := procedure.Actor{ID: sess.UserID, Username: sess.Username, Roles: sess.Roles}
	if user, _, err := h.users.Get(r.Context(), sess.UserID); err == nil && user != nil {
		actor.FullName = user.FullName
	}
	return actor
}

// Steps returns the definition+state join the incident page renders.
func (h *ProcedureHandler) Steps(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	tpl, states, err := h.procedures.Steps(r.Context(), id)
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"template": tpl,
		"steps":    states,
	})
}

type completeStepPayload struct {
	ExecutionID string `json:"execution_id"`
	Notes       string `json:"notes"`
	OptionValue string `json:"option_value"`
}

func (h *ProcedureHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	stepID, ok := idParam(r, "step_id")
	if !ok {
		http.Error(w, "bad step id", http.StatusBadRequest)
		return
	}
	var payload completeStepPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	state, err := h.procedures.CompleteStep(r.Context(), incidentID, procedure.CompleteStepRequest{
		StepID:      stepID,
		ExecutionID: payload.ExecutionID,
		Actor:       h.actor(r),
		Notes:       payload.Notes,
		OptionValue: payload.OptionValue,
	})
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": state})
}

type submitFormPayload struct {
	ExecutionID string         `json:"execution_id"`
	Data        map[string]any `json:"data"`
}

func (h *ProcedureHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	stepID, ok := idParam(r, "step_id")
	if !ok {
		http.Error(w, "bad step id", http.StatusBadRequest)
		return
	}
	var payload submitFormPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	state, err := h.procedures.SubmitStepForm(r.Context(), incidentID, stepID, payload.ExecutionID, h.actor(r), payload.Data)
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": state})
}

type selectRecordPayload struct {
	ExecutionID string `json:"execution_id"`
	RecordID    *int64 `json:"record_id"`
}

// SelectRecord links a directory record to the step, or clears the
// selection when record_id is null.
func (h *ProcedureHandler) SelectRecord(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	stepID, ok := idParam(r, "step_id")
	if !ok {
		http.Error(w, "bad step id", http.StatusBadRequest)
		return
	}
	var payload selectRecordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var record *procedure.SelectedRecord
	if payload.RecordID != nil {
		record = &procedure.SelectedRecord{ID: *payload.RecordID}
	}
	state, err := h.procedures.SelectStepRecord(r.Context(), incidentID, stepID, payload.ExecutionID, h.actor(r), record)
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": state})
}

// Assist resolves eligible on-duty substitutes for a step the caller
// cannot execute.
func (h *ProcedureHandler) Assist(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	stepID, ok := idParam(r, "step_id")
	if !ok {
		http.Error(w, "bad step id", http.StatusBadRequest)
		return
	}
	esc, err := h.procedures.RequestAssistance(r.Context(), incidentID, stepID, h.actor(r))
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalation": esc})
}

type dispatchAssistPayload struct {
	Recipients []int64 `json:"recipients"`
	Message    string  `json:"message"`
}

func (h *ProcedureHandler) DispatchAssist(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	stepID, ok := idParam(r, "step_id")
	if !ok {
		http.Error(w, "bad step id", http.StatusBadRequest)
		return
	}
	var payload dispatchAssistPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	result, err := h.procedures.DispatchAssistance(r.Context(), incidentID, stepID, h.actor(r), payload.Recipients, payload.Message)
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// Finish closes the incident once every required step is complete.
func (h *ProcedureHandler) Finish(w http.ResponseWriter, r *http.Request) {
	incidentID, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	signal, err := h.procedures.FinishProcedure(r.Context(), incidentID, h.actor(r))
	if err != nil {
		writeProcedureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"finished": signal})
}
