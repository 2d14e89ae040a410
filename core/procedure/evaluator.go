package procedure

// IsStepComplete reports step completion; a step is complete exactly
// when it has at least one recorded execution.
func IsStepComplete(state StepState) bool {
	return state.Completed
}

// AllRequiredComplete reports whether every required step in the
// catalog has a completed state. States are joined to definitions by
// step id; a required definition with no state counts as incomplete.
func AllRequiredComplete(defs []StepDefinition, states []StepState) bool {
	return len(IncompleteRequired(defs, states)) == 0
}

// IncompleteRequired returns the required definitions that are not yet
// complete, in catalog order.
func IncompleteRequired(defs []StepDefinition, states []StepState) []StepDefinition {
	byID := make(map[int64]StepState, len(states))
	for _, s := range states {
		byID[s.StepID] = s
	}
	var missing []StepDefinition
	for _, def := range defs {
		if !def.Required {
			continue
		}
		state, ok := byID[def.ID]
		if !ok || !state.Completed {
			missing = append(missing, def)
		}
	}
	return missing
}

// CanFinish gates procedure completion: all required steps done and
// the incident not already closed.
func CanFinish(defs []StepDefinition, states []StepState, incidentStatus string) bool {
	return AllRequiredComplete(defs, states) && incidentStatus != StatusClosed
}
