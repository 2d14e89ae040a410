package procedure

import "context"

// Collaborator contracts consumed by the engine. Implementations live
// outside this package (core/store provides the SQL-backed ones); the
// engine never touches persistence, form schemas or delivery transport
// directly.

// IncidentStore loads the incident-side view of a procedure instance
// and persists single-step mutations. SaveProcedureStep is silent: it
// must not emit incident-level audit entries of its own, because the
// engine appends its own trail. The write is step-scoped: only the
// step identified by step_id is merged, so writers on different steps
// never clobber each other. Last writer on a given step wins; last
// writer on a given execution id wins.
type IncidentStore interface {
	GetProcedureIncident(ctx context.Context, incidentID int64) (*IncidentRef, error)
	SaveProcedureStep(ctx context.Context, incidentID int64, step StepState) error
}

// TemplateCatalog resolves the immutable step definition catalog an
// incident's procedure instance was copied from.
type TemplateCatalog interface {
	GetTemplate(ctx context.Context, templateID int64) (*Template, error)
}

// AuditLog is the incident's append-only trail. Append failures are
// reported but never roll back the mutation they describe.
type AuditLog interface {
	Append(ctx context.Context, incidentID int64, entry AuditEntry) error
}

// FormStore owns form submissions and their validation; the engine
// only links submission ids to executions.
type FormStore interface {
	FormTitle(ctx context.Context, formID int64) (string, error)
	CreateSubmission(ctx context.Context, formID, actorID int64, data map[string]any) (int64, error)
	UpdateSubmission(ctx context.Context, submissionID, actorID int64, data map[string]any) error
}

// RecordDirectory is a read-only lookup by type slug. The engine needs
// no create permission.
type RecordDirectory interface {
	Lookup(ctx context.Context, typeSlug string, recordID int64) (*SelectedRecord, error)
}

// RoleDirectory resolves role names for display.
type RoleDirectory interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Roster reports users currently on an active shift, with role sets.
type Roster interface {
	ActiveUsersNow(ctx context.Context) ([]RosterUser, error)
}

// Notification is one escalation notification request.
type Notification struct {
	UserID   int64
	Title    string
	Message  string
	Priority string
	DeepLink string
}

const PriorityHigh = "high"

// NotificationSink creates notification records; delivery transport is
// behind this interface and out of the engine's scope.
type NotificationSink interface {
	Create(ctx context.Context, n Notification) error
}

// Closer consumes the procedure-completion signal.
type Closer interface {
	ProcedureFinished(ctx context.Context, incidentID, actorID int64) error
}
