package procedure

import (
	"fmt"
	"strings"
)

// ValidationError rejects an operation before any mutation. Nothing is
// persisted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthorizationError means the actor's roles do not intersect the
// step's allowed roles. Nothing is persisted; the assistance flow is
// the intended follow-up.
type AuthorizationError struct {
	Actor  string
	StepID int64
	Title  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed to execute step %q", e.Actor, e.Title)
}

// PersistenceError wraps a collaborator write failure. In-memory state
// is not advanced; the caller retries the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PreconditionError is returned by FinishProcedure while required steps
// remain incomplete. It names the offending steps.
type PreconditionError struct {
	StepIDs []int64
	Titles  []string
}

func (e *PreconditionError) Error() string {
	if len(e.Titles) == 0 {
		return "required steps incomplete"
	}
	return "required steps incomplete: " + strings.Join(e.Titles, ", ")
}

// DispatchFailure is one failed notification request within an
// escalation dispatch. Per-recipient and non-fatal.
type DispatchFailure struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (f DispatchFailure) Error() string {
	return fmt.Sprintf("notify user %d: %s", f.UserID, f.Reason)
}
