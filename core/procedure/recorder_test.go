package procedure

import (
	"fmt"
	"testing"
	"time"
)

func testRecorder() *Recorder {
	seq := 0
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &Recorder{
		Now: func() time.Time {
			seq++
			return base.Add(time.Duration(seq) * time.Minute)
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("exec-%d", seq)
		},
	}
}

func basicStep(id int64, required, multiple bool) StepDefinition {
	return StepDefinition{ID: id, Title: fmt.Sprintf("Step %d", id), Required: required, Type: StepBasic, AllowMultiple: multiple}
}

func TestRecordSingleExecution(t *testing.T) {
	r := testRecorder()
	def := basicStep(1, true, false)
	state := StepState{StepID: 1, Executions: []Execution{}}

	next, err := r.Record(def, state, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, Notes: "ok"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !next.Completed {
		t.Fatalf("expected completed")
	}
	if len(next.Executions) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(next.Executions))
	}
	if next.CompletedBy == nil || *next.CompletedBy != 10 {
		t.Fatalf("completed_by mirror not set")
	}
	if next.Notes != "ok" {
		t.Fatalf("notes mirror = %q", next.Notes)
	}
	if len(state.Executions) != 0 {
		t.Fatalf("input state mutated")
	}
}

func TestRecordSingleExecutionReplacesSlot(t *testing.T) {
	r := testRecorder()
	def := basicStep(1, true, false)
	state := StepState{StepID: 1, Executions: []Execution{}}

	next, err := r.Record(def, state, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, Notes: "first"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	firstID := next.Executions[0].ID
	next, err = r.Record(def, next, ExecutionInput{Actor: Actor{ID: 11, Username: "u2"}, Notes: "second"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(next.Executions) != 1 {
		t.Fatalf("single-execution step grew to %d executions", len(next.Executions))
	}
	if next.Executions[0].ID != firstID {
		t.Fatalf("sole slot id changed on replace")
	}
	if *next.CompletedBy != 11 || next.Notes != "second" {
		t.Fatalf("mirrors must follow the sole execution")
	}
}

func TestRecordRepeatableFirstCompletionWins(t *testing.T) {
	r := testRecorder()
	def := basicStep(2, false, true)
	state := StepState{StepID: 2, Executions: []Execution{}}

	next, err := r.Record(def, state, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	firstAt := *next.CompletedAt
	next, err = r.Record(def, next, ExecutionInput{Actor: Actor{ID: 11, Username: "u2"}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(next.Executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(next.Executions))
	}
	if *next.CompletedBy != 10 {
		t.Fatalf("completed_by changed after second execution: %d", *next.CompletedBy)
	}
	if !next.CompletedAt.Equal(firstAt) {
		t.Fatalf("completed_at changed after second execution")
	}
	if next.Executions[0].ID == next.Executions[1].ID {
		t.Fatalf("execution ids must be unique within a step")
	}
}

func TestRecordEditByExecutionID(t *testing.T) {
	r := testRecorder()
	def := StepDefinition{ID: 3, Title: "Write summary", Type: StepText, AllowMultiple: true}
	state := StepState{StepID: 3, Executions: []Execution{}}

	next, _ := r.Record(def, state, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, Notes: "draft"})
	next, _ = r.Record(def, next, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, Notes: "another"})
	editID := next.Executions[0].ID

	next, err := r.Record(def, next, ExecutionInput{ExecutionID: editID, Actor: Actor{ID: 12, Username: "u3"}, Notes: "final"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(next.Executions) != 2 {
		t.Fatalf("edit changed execution count: %d", len(next.Executions))
	}
	if next.Executions[0].Notes != "final" || next.Executions[0].CompletedBy != 12 {
		t.Fatalf("edit did not replace fields in place")
	}
	if next.Executions[0].ID != editID {
		t.Fatalf("edit changed execution id")
	}
	if *next.CompletedBy != 10 {
		t.Fatalf("mirror changed by edit")
	}

	if _, err := r.Record(def, next, ExecutionInput{ExecutionID: "missing", Actor: Actor{ID: 10}}); err == nil {
		t.Fatalf("expected validation error for unknown execution id")
	}
}

func TestRecordRequiresActor(t *testing.T) {
	r := testRecorder()
	def := basicStep(1, true, false)
	if _, err := r.Record(def, StepState{StepID: 1}, ExecutionInput{Notes: "no actor"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRecordSelectionSynthesizesNotes(t *testing.T) {
	r := testRecorder()
	def := StepDefinition{
		ID:    4,
		Title: "Pick severity",
		Type:  StepSelection,
		Config: SelectionConfig{Options: []SelectionOption{
			{Value: "low", Label: "Low"},
			{Value: "high", Label: "High impact"},
		}},
	}
	next, err := r.Record(def, StepState{StepID: 4}, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, OptionValue: "high"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if next.Executions[0].Notes != "Selected: High impact" {
		t.Fatalf("notes = %q", next.Executions[0].Notes)
	}
	if _, err := r.Record(def, StepState{StepID: 4}, ExecutionInput{Actor: Actor{ID: 10}, OptionValue: "bogus"}); err == nil {
		t.Fatalf("expected validation error for unknown option")
	}
}

func TestRecordFormRequiresSubmission(t *testing.T) {
	r := testRecorder()
	def := StepDefinition{ID: 5, Title: "Containment form", Type: StepForm, Config: FormConfig{FormID: 7}, AllowMultiple: true}

	if _, err := r.Record(def, StepState{StepID: 5}, ExecutionInput{Actor: Actor{ID: 10}}); err == nil {
		t.Fatalf("expected validation error for missing submission")
	}
	sub := int64(99)
	next, err := r.Record(def, StepState{StepID: 5}, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, FormSubmissionID: &sub})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	// Edit without the id keeps the linked submission.
	next, err = r.Record(def, next, ExecutionInput{ExecutionID: next.Executions[0].ID, Actor: Actor{ID: 10, Username: "u1"}})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if next.Executions[0].FormSubmissionID == nil || *next.Executions[0].FormSubmissionID != 99 {
		t.Fatalf("submission link lost on edit")
	}
}

func TestRecordRecordLinkAndClear(t *testing.T) {
	r := testRecorder()
	def := StepDefinition{ID: 6, Title: "Link asset", Type: StepRecordLink, Config: RecordLinkConfig{TargetType: "asset"}}

	if _, err := r.Record(def, StepState{StepID: 6}, ExecutionInput{Actor: Actor{ID: 10}}); err == nil {
		t.Fatalf("expected validation error for missing record on new execution")
	}
	next, err := r.Record(def, StepState{StepID: 6}, ExecutionInput{
		Actor:     Actor{ID: 10, Username: "u1"},
		HasRecord: true,
		Record:    &SelectedRecord{ID: 42, Display: "web-01"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if next.Executions[0].SelectedRecordID == nil || *next.Executions[0].SelectedRecordID != 42 {
		t.Fatalf("record link not stored")
	}

	// Clearing is accepted and recorded, not rejected.
	next, err = r.Record(def, next, ExecutionInput{Actor: Actor{ID: 10, Username: "u1"}, HasRecord: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if next.Executions[0].SelectedRecordID != nil {
		t.Fatalf("clear left record id set")
	}
	if next.Executions[0].Notes != "Selection cleared" {
		t.Fatalf("clear notes = %q", next.Executions[0].Notes)
	}
	if !next.Completed {
		t.Fatalf("clear must not un-complete the step")
	}
}

func TestCompletedMatchesExecutionsInvariant(t *testing.T) {
	r := testRecorder()
	defs := []StepDefinition{basicStep(1, true, false), basicStep(2, false, true)}
	states := map[int64]StepState{
		1: {StepID: 1, Executions: []Execution{}},
		2: {StepID: 2, Executions: []Execution{}},
	}
	actors := []Actor{{ID: 1, Username: "a"}, {ID: 2, Username: "b"}, {ID: 3, Username: "c"}}
	for i := 0; i < 9; i++ {
		def := defs[i%2]
		st, err := r.Record(def, states[def.ID], ExecutionInput{Actor: actors[i%3], Notes: fmt.Sprintf("n%d", i)})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		states[def.ID] = st
		for id, s := range states {
			if s.Completed != (len(s.Executions) >= 1) {
				t.Fatalf("invariant broken on step %d", id)
			}
		}
		if len(states[1].Executions) > 1 {
			t.Fatalf("single-execution step exceeded one execution")
		}
	}
}
