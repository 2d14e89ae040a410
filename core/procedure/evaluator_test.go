package procedure

import "testing"

func TestAllRequiredComplete(t *testing.T) {
	defs := []StepDefinition{
		{ID: 1, Title: "Triage", Required: true, Type: StepBasic},
		{ID: 2, Title: "Notes", Required: false, Type: StepText},
		{ID: 3, Title: "Contain", Required: true, Type: StepBasic},
	}
	states := []StepState{
		{StepID: 1, Completed: true},
		{StepID: 2},
		{StepID: 3},
	}
	if AllRequiredComplete(defs, states) {
		t.Fatalf("incomplete required step not detected")
	}
	missing := IncompleteRequired(defs, states)
	if len(missing) != 1 || missing[0].ID != 3 {
		t.Fatalf("IncompleteRequired = %v", missing)
	}

	states[2].Completed = true
	if !AllRequiredComplete(defs, states) {
		t.Fatalf("expected all required complete")
	}
}

func TestAllRequiredCompleteMissingState(t *testing.T) {
	defs := []StepDefinition{{ID: 1, Title: "Triage", Required: true, Type: StepBasic}}
	if AllRequiredComplete(defs, nil) {
		t.Fatalf("required definition without state must count as incomplete")
	}
}

func TestCanFinish(t *testing.T) {
	defs := []StepDefinition{{ID: 1, Title: "Triage", Required: true, Type: StepBasic}}
	states := []StepState{{StepID: 1, Completed: true}}
	if !CanFinish(defs, states, "open") {
		t.Fatalf("expected finishable")
	}
	if CanFinish(defs, states, StatusClosed) {
		t.Fatalf("closed incident must not be finishable")
	}
	if CanFinish(defs, []StepState{{StepID: 1}}, "open") {
		t.Fatalf("incomplete required step must block finish")
	}
}
