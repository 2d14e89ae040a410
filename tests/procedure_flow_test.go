package tests

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vigil-ird/config"
	"vigil-ird/core/procedure"
	"vigil-ird/core/store"
)

type env struct {
	users         store.UsersStore
	roles         store.RolesStore
	incidents     store.IncidentsStore
	templates     store.TemplatesStore
	forms         store.FormsStore
	records       store.RecordsStore
	shifts        store.ShiftsStore
	notifications store.NotificationsStore
	orchestrator  *procedure.Orchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := &config.AppConfig{
		DBPath:  filepath.Join(t.TempDir(), "flow.db"),
		BaseURL: "http://vigil.local",
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := &env{
		users:         store.NewUsersStore(db),
		roles:         store.NewRolesStore(db),
		incidents:     store.NewIncidentsStore(db),
		templates:     store.NewTemplatesStore(db),
		forms:         store.NewFormsStore(db),
		records:       store.NewRecordsStore(db),
		shifts:        store.NewShiftsStore(db),
		notifications: store.NewNotificationsStore(db),
	}
	trail := store.NewProcedureTrail(e.incidents)
	escalation := procedure.NewEscalationNotifier(
		e.shifts,
		store.NewNotificationSink(e.notifications),
		e.roles,
		trail,
		cfg.BaseURL,
		"",
		nil,
	)
	e.orchestrator = procedure.NewOrchestrator(e.incidents, e.templates, e.forms, e.records, trail, escalation, nil)
	e.orchestrator.SetCloser(store.NewIncidentCloser(e.incidents))
	return e
}

func (e *env) user(t *testing.T, username, role string) (int64, procedure.Actor) {
	t.Helper()
	ctx := context.Background()
	var roleID int64
	existing, err := e.roles.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	for _, r := range existing {
		if r.Name == role {
			roleID = r.ID
		}
	}
	if roleID == 0 {
		roleID, err = e.roles.CreateRole(ctx, role, "", nil)
		if err != nil {
			t.Fatalf("create role %s: %v", role, err)
		}
	}
	id, err := e.users.CreateUser(ctx, &store.User{Username: username}, "pw", []int64{roleID})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return id, procedure.Actor{ID: id, Username: username, Roles: []string{role}}
}

func (e *env) onShift(t *testing.T, userID int64) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := e.shifts.CreateShift(context.Background(), &store.Shift{
		UserID:   userID,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(4 * time.Hour),
	}); err != nil {
		t.Fatalf("create shift: %v", err)
	}
}

func TestProcedureLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, analyst := e.user(t, "b.analyst", "analyst")
	responderID, responder := e.user(t, "c.responder", "responder")
	e.user(t, "d.offduty", "responder") // same role, but off shift: must not be eligible
	e.onShift(t, responderID)

	formID, err := e.forms.CreateForm(ctx, &store.Form{Title: "Containment report"})
	if err != nil {
		t.Fatalf("create form: %v", err)
	}

	tplID, err := e.templates.CreateTemplate(ctx, &store.ProcedureTemplate{Name: "Malware response", Category: "malware"}, []procedure.StepDefinition{
		{Title: "Triage alert", Required: true, Type: procedure.StepBasic},
		{Title: "Isolate host", Required: true, Type: procedure.StepBasic,
			RoleRestricted: true, AllowedRoles: []string{"responder"}},
		{Title: "File containment report", Required: true, Type: procedure.StepForm,
			Config: procedure.FormConfig{FormID: formID}},
		{Title: "Link affected asset", Type: procedure.StepRecordLink,
			Config: procedure.RecordLinkConfig{TargetType: "asset"}},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	tpl, err := e.templates.GetTemplate(ctx, tplID)
	if err != nil || tpl == nil {
		t.Fatalf("get template: %v", err)
	}
	steps := tpl.Steps

	inc := &store.Incident{Title: "Ransomware on WS-042", Severity: "critical", CreatedBy: analyst.ID, UpdatedBy: analyst.ID, TemplateID: &tplID}
	incidentID, err := e.incidents.CreateIncident(ctx, inc, procedure.NewInstance(*tpl), "INC-{year}-{seq:05}")
	if err != nil {
		t.Fatalf("create incident: %v", err)
	}

	// Unrestricted step: any authenticated actor may execute.
	state, err := e.orchestrator.CompleteStep(ctx, incidentID, procedure.CompleteStepRequest{
		StepID: steps[0].ID,
		Actor:  analyst,
		Notes:  "confirmed EDR detection",
	})
	if err != nil {
		t.Fatalf("complete triage: %v", err)
	}
	if !state.Completed || len(state.Executions) != 1 {
		t.Fatalf("triage state = %+v", state)
	}

	// Restricted step denies the analyst without touching storage.
	_, err = e.orchestrator.CompleteStep(ctx, incidentID, procedure.CompleteStepRequest{
		StepID: steps[1].ID,
		Actor:  analyst,
	})
	var aerr *procedure.AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	// Assistance: only the on-duty responder is eligible.
	esc, err := e.orchestrator.RequestAssistance(ctx, incidentID, steps[1].ID, analyst)
	if err != nil {
		t.Fatalf("request assistance: %v", err)
	}
	if esc.State != procedure.EscalationAwaitingSelection || len(esc.Eligible) != 1 || esc.Eligible[0].ID != responderID {
		t.Fatalf("escalation = %+v", esc)
	}
	result, err := e.orchestrator.DispatchAssistance(ctx, incidentID, steps[1].ID, analyst, []int64{responderID}, "")
	if err != nil {
		t.Fatalf("dispatch assistance: %v", err)
	}
	if result.State != procedure.EscalationSent || len(result.Notified) != 1 {
		t.Fatalf("dispatch result = %+v", result)
	}
	notes, err := e.notifications.ListForUser(ctx, responderID, true, 10)
	if err != nil || len(notes) != 1 {
		t.Fatalf("notifications = %+v (%v)", notes, err)
	}
	if notes[0].Priority != procedure.PriorityHigh || notes[0].DeepLink == "" {
		t.Fatalf("notification = %+v", notes[0])
	}

	if _, err := e.orchestrator.CompleteStep(ctx, incidentID, procedure.CompleteStepRequest{
		StepID: steps[1].ID,
		Actor:  responder,
	}); err != nil {
		t.Fatalf("responder complete: %v", err)
	}

	// Finish is gated on the required form step.
	_, err = e.orchestrator.FinishProcedure(ctx, incidentID, responder)
	var perr *procedure.PreconditionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if len(perr.StepIDs) != 1 || perr.StepIDs[0] != steps[2].ID {
		t.Fatalf("precondition names %v, want [%d]", perr.StepIDs, steps[2].ID)
	}

	formState, err := e.orchestrator.SubmitStepForm(ctx, incidentID, steps[2].ID, "", analyst, map[string]any{"host": "WS-042", "action": "isolated"})
	if err != nil {
		t.Fatalf("submit form: %v", err)
	}
	subID := formState.Executions[0].FormSubmissionID
	if subID == nil {
		t.Fatal("form execution missing submission link")
	}
	sub, err := e.forms.GetSubmission(ctx, *subID)
	if err != nil || sub == nil || sub.Data["host"] != "WS-042" {
		t.Fatalf("submission = %+v (%v)", sub, err)
	}

	// Optional record step stays open without blocking finish.
	signal, err := e.orchestrator.FinishProcedure(ctx, incidentID, responder)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if signal.IncidentID != incidentID {
		t.Fatalf("signal = %+v", signal)
	}
	closed, err := e.incidents.GetIncident(ctx, incidentID)
	if err != nil || closed == nil {
		t.Fatalf("get incident: %v", err)
	}
	if closed.Status != procedure.StatusClosed || closed.ClosedAt == nil {
		t.Fatalf("incident not closed: %+v", closed)
	}

	// The trail recorded every milestone.
	events, err := e.incidents.ListIncidentTimeline(ctx, incidentID, 50)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	kinds := map[string]int{}
	for _, ev := range events {
		kinds[ev.EventType]++
	}
	if kinds[procedure.AuditStepExecuted] != 3 {
		t.Fatalf("step executions in trail = %d, want 3 (%+v)", kinds[procedure.AuditStepExecuted], kinds)
	}
	if kinds[procedure.AuditAssistanceSent] != 1 || kinds[procedure.AuditFinished] != 1 {
		t.Fatalf("trail kinds = %+v", kinds)
	}

	// Finishing again is rejected, the trail stays as-is.
	if _, err := e.orchestrator.FinishProcedure(ctx, incidentID, responder); err == nil {
		t.Fatal("expected error finishing a closed incident")
	}
}

func TestRecordLinkFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, actor := e.user(t, "a.analyst", "analyst")

	recordID, err := e.records.CreateRecord(ctx, &store.Record{Type: "asset", Display: "WS-042 (workstation)"})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	tplID, err := e.templates.CreateTemplate(ctx, &store.ProcedureTemplate{Name: "Asset link"}, []procedure.StepDefinition{
		{Title: "Link affected asset", Required: true, Type: procedure.StepRecordLink,
			Config: procedure.RecordLinkConfig{TargetType: "asset"}},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	tpl, _ := e.templates.GetTemplate(ctx, tplID)
	stepID := tpl.Steps[0].ID

	inc := &store.Incident{Title: "Asset test", CreatedBy: actor.ID, UpdatedBy: actor.ID, TemplateID: &tplID}
	incidentID, err := e.incidents.CreateIncident(ctx, inc, procedure.NewInstance(*tpl), "")
	if err != nil {
		t.Fatalf("create incident: %v", err)
	}

	// Unknown record is rejected before any write.
	if _, err := e.orchestrator.SelectStepRecord(ctx, incidentID, stepID, "", actor, &procedure.SelectedRecord{ID: 999}); err == nil {
		t.Fatal("expected validation error for unknown record")
	}

	state, err := e.orchestrator.SelectStepRecord(ctx, incidentID, stepID, "", actor, &procedure.SelectedRecord{ID: recordID})
	if err != nil {
		t.Fatalf("select record: %v", err)
	}
	exec := state.Executions[0]
	if exec.SelectedRecordID == nil || *exec.SelectedRecordID != recordID || exec.SelectedRecord != "WS-042 (workstation)" {
		t.Fatalf("execution = %+v", exec)
	}

	// Clearing replaces the link but keeps the step complete.
	state, err = e.orchestrator.SelectStepRecord(ctx, incidentID, stepID, exec.ID, actor, nil)
	if err != nil {
		t.Fatalf("clear record: %v", err)
	}
	if !state.Completed {
		t.Fatal("step lost completion on clear")
	}
	if got := state.Executions[0]; got.SelectedRecordID != nil {
		t.Fatalf("record link not cleared: %+v", got)
	}
}
