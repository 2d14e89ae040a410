package procedure

import (
	"context"
	"time"

	"vigil-ird/core/utils"
)

// Orchestrator composes the gate, recorder, evaluator, trail emitter
// and escalation notifier over the collaborator contracts. All
// operations are synchronous request/response; the only suspension
// points are the collaborator calls.
type Orchestrator struct {
	incidents  IncidentStore
	templates  TemplateCatalog
	forms      FormStore
	records    RecordDirectory
	audit      AuditLog
	escalation *EscalationNotifier
	recorder   *Recorder
	closer     Closer
	logger     *utils.Logger
}

func NewOrchestrator(incidents IncidentStore, templates TemplateCatalog, forms FormStore, records RecordDirectory, audit AuditLog, escalation *EscalationNotifier, logger *utils.Logger) *Orchestrator {
	return &Orchestrator{
		incidents:  incidents,
		templates:  templates,
		forms:      forms,
		records:    records,
		audit:      audit,
		escalation: escalation,
		recorder:   NewRecorder(),
		logger:     logger,
	}
}

// SetCloser wires the incident-closure consumer of the completion
// signal.
func (o *Orchestrator) SetCloser(c Closer) {
	o.closer = c
}

// SetRecorder overrides the execution recorder (tests inject fixed
// clocks and id sources).
func (o *Orchestrator) SetRecorder(r *Recorder) {
	o.recorder = r
}

// CompleteStepRequest is the input to CompleteStep. ExecutionID empty
// appends a new execution; a known id replaces that execution.
type CompleteStepRequest struct {
	StepID           int64
	ExecutionID      string
	Actor            Actor
	Notes            string
	FormSubmissionID *int64
	OptionValue      string
	HasRecord        bool
	Record           *SelectedRecord
}

// CompleteStep runs gate -> recorder -> persist -> trail for one step.
// The persistence write is silent and step-scoped; trail append
// failure never reverses the mutation.
func (o *Orchestrator) CompleteStep(ctx context.Context, incidentID int64, req CompleteStepRequest) (*StepState, error) {
	inc, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	def, ok := tpl.Step(req.StepID)
	if !ok {
		return nil, validationErr("step_id", "no such step in the incident's procedure")
	}
	if !CanExecute(req.Actor, def) {
		return nil, &AuthorizationError{Actor: req.Actor.Username, StepID: def.ID, Title: def.Title}
	}
	state, ok := inc.StepState(req.StepID)
	if !ok {
		state = StepState{StepID: req.StepID, Executions: []Execution{}}
	}
	next, err := o.recorder.Record(def, state, ExecutionInput{
		ExecutionID:      req.ExecutionID,
		Actor:            req.Actor,
		Notes:            req.Notes,
		FormSubmissionID: req.FormSubmissionID,
		OptionValue:      req.OptionValue,
		HasRecord:        req.HasRecord,
		Record:           req.Record,
	})
	if err != nil {
		return nil, err
	}
	if err := o.incidents.SaveProcedureStep(ctx, incidentID, next); err != nil {
		return nil, &PersistenceError{Op: "save procedure step", Err: err}
	}
	o.appendExecutionTrail(ctx, incidentID, def, next, req)
	return &next, nil
}

func (o *Orchestrator) appendExecutionTrail(ctx context.Context, incidentID int64, def StepDefinition, next StepState, req CompleteStepRequest) {
	updated := req.ExecutionID != ""
	formTitle := ""
	if cfg, ok := def.Config.(FormConfig); ok && o.forms != nil {
		if title, err := o.forms.FormTitle(ctx, cfg.FormID); err == nil {
			formTitle = title
		}
	}
	exec := next.Executions[len(next.Executions)-1]
	if updated {
		if idx, ok := next.execution(req.ExecutionID); ok {
			exec = next.Executions[idx]
		}
	}
	entry := AuditEntry{
		At:      exec.CompletedAt,
		ActorID: req.Actor.ID,
		Actor:   req.Actor.DisplayName(),
		Kind:    AuditStepExecuted,
		Message: RenderExecutionMessage(def, exec, formTitle, updated),
	}
	if err := o.audit.Append(ctx, incidentID, entry); err != nil && o.logger != nil {
		o.logger.Errorf("procedure trail append incident=%d step=%d: %v", incidentID, def.ID, err)
	}
}

// SubmitStepForm creates or updates a form submission, then completes
// the step with the submission linked. The gate is checked before any
// submission write so an unauthorized actor causes no I/O.
func (o *Orchestrator) SubmitStepForm(ctx context.Context, incidentID, stepID int64, executionID string, actor Actor, data map[string]any) (*StepState, error) {
	inc, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	def, ok := tpl.Step(stepID)
	if !ok {
		return nil, validationErr("step_id", "no such step in the incident's procedure")
	}
	cfg, ok := def.Config.(FormConfig)
	if !ok {
		return nil, validationErr("step_id", "not a form step")
	}
	if actor.ID == 0 {
		return nil, validationErr("actor", "required")
	}
	if !CanExecute(actor, def) {
		return nil, &AuthorizationError{Actor: actor.Username, StepID: def.ID, Title: def.Title}
	}

	var submissionID int64
	if executionID != "" {
		if state, ok := inc.StepState(stepID); ok {
			if idx, ok := state.execution(executionID); ok && state.Executions[idx].FormSubmissionID != nil {
				submissionID = *state.Executions[idx].FormSubmissionID
			}
		}
	}
	if submissionID != 0 {
		if err := o.forms.UpdateSubmission(ctx, submissionID, actor.ID, data); err != nil {
			return nil, &PersistenceError{Op: "update form submission", Err: err}
		}
	} else {
		id, err := o.forms.CreateSubmission(ctx, cfg.FormID, actor.ID, data)
		if err != nil {
			return nil, &PersistenceError{Op: "create form submission", Err: err}
		}
		submissionID = id
	}
	return o.CompleteStep(ctx, incidentID, CompleteStepRequest{
		StepID:           stepID,
		ExecutionID:      executionID,
		Actor:            actor,
		FormSubmissionID: &submissionID,
	})
}

// SelectStepRecord completes a record_link step with the given record,
// or clears the selection when record is nil. A non-nil record is
// verified against the directory and its display refreshed from it.
func (o *Orchestrator) SelectStepRecord(ctx context.Context, incidentID, stepID int64, executionID string, actor Actor, record *SelectedRecord) (*StepState, error) {
	_, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	def, ok := tpl.Step(stepID)
	if !ok {
		return nil, validationErr("step_id", "no such step in the incident's procedure")
	}
	cfg, ok := def.Config.(RecordLinkConfig)
	if !ok {
		return nil, validationErr("step_id", "not a record link step")
	}
	if record != nil && o.records != nil {
		found, err := o.records.Lookup(ctx, cfg.TargetType, record.ID)
		if err != nil {
			return nil, &PersistenceError{Op: "record lookup", Err: err}
		}
		if found == nil {
			return nil, validationErr("selected_record", "no such record")
		}
		record = found
	}
	return o.CompleteStep(ctx, incidentID, CompleteStepRequest{
		StepID:      stepID,
		ExecutionID: executionID,
		Actor:       actor,
		HasRecord:   true,
		Record:      record,
	})
}

// RequestAssistance resolves eligible on-duty substitutes for a step
// the actor cannot execute. It is only available when the gate denies
// the actor.
func (o *Orchestrator) RequestAssistance(ctx context.Context, incidentID, stepID int64, actor Actor) (*Escalation, error) {
	inc, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	def, ok := tpl.Step(stepID)
	if !ok {
		return nil, validationErr("step_id", "no such step in the incident's procedure")
	}
	if CanExecute(actor, def) {
		return nil, validationErr("step_id", "actor is already authorized for this step")
	}
	return o.escalation.Resolve(ctx, *inc, def, actor)
}

// DispatchAssistance re-resolves the escalation and dispatches to the
// selected recipients with the given (or default) message.
func (o *Orchestrator) DispatchAssistance(ctx context.Context, incidentID, stepID int64, actor Actor, selected []int64, message string) (*NotificationResult, error) {
	esc, err := o.RequestAssistance(ctx, incidentID, stepID, actor)
	if err != nil {
		return nil, err
	}
	if esc.State == EscalationNoEligible {
		return &NotificationResult{State: EscalationNoEligible}, nil
	}
	return o.escalation.Dispatch(ctx, esc, selected, message)
}

// CompletionSignal is emitted when the whole procedure can finish; the
// incident-closure collaborator consumes it.
type CompletionSignal struct {
	IncidentID int64     `json:"incident_id"`
	ActorID    int64     `json:"actor_id"`
	At         time.Time `json:"at"`
}

// FinishProcedure emits the completion signal when every required step
// is complete and the incident is still open. Otherwise it returns a
// PreconditionError naming the incomplete required steps.
func (o *Orchestrator) FinishProcedure(ctx context.Context, incidentID int64, actor Actor) (*CompletionSignal, error) {
	inc, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if inc.Status == StatusClosed {
		return nil, validationErr("incident", "already closed")
	}
	if missing := IncompleteRequired(tpl.Steps, inc.Steps); len(missing) > 0 {
		perr := &PreconditionError{}
		for _, def := range missing {
			perr.StepIDs = append(perr.StepIDs, def.ID)
			perr.Titles = append(perr.Titles, def.Title)
		}
		return nil, perr
	}
	signal := &CompletionSignal{IncidentID: incidentID, ActorID: actor.ID, At: utils.NowUTC()}
	if o.closer != nil {
		if err := o.closer.ProcedureFinished(ctx, incidentID, actor.ID); err != nil {
			return nil, &PersistenceError{Op: "finish procedure", Err: err}
		}
	}
	entry := AuditEntry{
		At:      signal.At,
		ActorID: actor.ID,
		Actor:   actor.DisplayName(),
		Kind:    AuditFinished,
		Message: "all required procedure steps complete, procedure finished",
	}
	if err := o.audit.Append(ctx, incidentID, entry); err != nil && o.logger != nil {
		o.logger.Errorf("procedure finish trail append incident=%d: %v", incidentID, err)
	}
	return signal, nil
}

// Steps returns the joined definition+state view the UI renders.
func (o *Orchestrator) Steps(ctx context.Context, incidentID int64) (*Template, []StepState, error) {
	inc, tpl, err := o.load(ctx, incidentID)
	if err != nil {
		return nil, nil, err
	}
	return tpl, inc.Steps, nil
}

func (o *Orchestrator) load(ctx context.Context, incidentID int64) (*IncidentRef, *Template, error) {
	inc, err := o.incidents.GetProcedureIncident(ctx, incidentID)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load incident", Err: err}
	}
	if inc == nil {
		return nil, nil, validationErr("incident", "not found")
	}
	if inc.TemplateID == 0 {
		return nil, nil, validationErr("incident", "no procedure attached")
	}
	tpl, err := o.templates.GetTemplate(ctx, inc.TemplateID)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load template", Err: err}
	}
	if tpl == nil {
		return nil, nil, validationErr("incident", "procedure template missing")
	}
	return inc, tpl, nil
}
