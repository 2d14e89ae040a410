package procedure

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ExecutionInput carries one requested execution. ExecutionID empty
// means append a new execution; a matching id means replace that
// execution in place.
type ExecutionInput struct {
	ExecutionID      string
	Actor            Actor
	Notes            string
	FormSubmissionID *int64
	// OptionValue selects one of the step's configured options
	// (selection steps only).
	OptionValue string
	// HasRecord marks an explicit record selection on record_link
	// steps. Record == nil with HasRecord set is a deliberate clear,
	// recorded rather than rejected.
	HasRecord bool
	Record    *SelectedRecord
}

// Recorder applies executions to step states. It is a pure function of
// (definition, current state, input); clock and id source are
// injectable for tests.
type Recorder struct {
	Now   func() time.Time
	NewID func() string
}

func NewRecorder() *Recorder {
	return &Recorder{
		Now:   time.Now,
		NewID: func() string { return uuid.Must(uuid.NewV4()).String() },
	}
}

// Record computes the next step state. The input state is not mutated.
func (r *Recorder) Record(def StepDefinition, state StepState, input ExecutionInput) (StepState, error) {
	if input.Actor.ID == 0 {
		return state, validationErr("actor", "required")
	}

	isNew := input.ExecutionID == ""
	prevIdx := -1
	if !isNew {
		idx, ok := state.execution(input.ExecutionID)
		if !ok {
			return state, validationErr("execution_id", "no such execution")
		}
		prevIdx = idx
	}

	exec := Execution{
		ID:               input.ExecutionID,
		CompletedAt:      r.Now().UTC(),
		CompletedBy:      input.Actor.ID,
		CompletedByName:  input.Actor.DisplayName(),
		Notes:            input.Notes,
		FormSubmissionID: input.FormSubmissionID,
	}
	if isNew {
		exec.ID = r.NewID()
	}

	switch def.Type {
	case StepSelection:
		opt, ok := def.Option(input.OptionValue)
		if !ok {
			return state, validationErr("selected_option", "must be one of the step's options")
		}
		exec.Notes = "Selected: " + opt.Label
	case StepForm:
		if exec.FormSubmissionID == nil {
			if isNew {
				return state, validationErr("form_submission_id", "required for form steps")
			}
			// In-place edits keep the linked submission.
			exec.FormSubmissionID = state.Executions[prevIdx].FormSubmissionID
		}
	case StepRecordLink:
		if !input.HasRecord && isNew {
			return state, validationErr("selected_record", "required for record link steps")
		}
		if input.Record != nil {
			id := input.Record.ID
			exec.SelectedRecordID = &id
			exec.SelectedRecord = input.Record.Display
		} else if input.HasRecord {
			if exec.Notes == "" {
				exec.Notes = "Selection cleared"
			}
		} else {
			// Edit without an explicit selection keeps the previous link.
			prev := state.Executions[prevIdx]
			exec.SelectedRecordID = prev.SelectedRecordID
			exec.SelectedRecord = prev.SelectedRecord
		}
	}

	next := state
	next.Executions = make([]Execution, len(state.Executions))
	copy(next.Executions, state.Executions)

	if !def.AllowMultiple {
		// The sole execution slot is replaced regardless of append vs. edit.
		if len(next.Executions) == 0 {
			next.Executions = append(next.Executions, exec)
		} else {
			exec.ID = next.Executions[0].ID
			next.Executions[0] = exec
		}
		next.Notes = exec.Notes
		at := exec.CompletedAt
		by := exec.CompletedBy
		next.CompletedAt = &at
		next.CompletedBy = &by
	} else {
		if isNew {
			next.Executions = append(next.Executions, exec)
		} else {
			next.Executions[prevIdx] = exec
		}
		// First completion wins: mirrors are never overwritten on
		// repeatable steps.
		if next.CompletedBy == nil {
			at := exec.CompletedAt
			by := exec.CompletedBy
			next.CompletedAt = &at
			next.CompletedBy = &by
			next.Notes = exec.Notes
		}
	}

	// Completed flags the first execution and is never reset here;
	// there is no un-complete operation in the model.
	next.Completed = len(next.Executions) >= 1
	return next, nil
}
