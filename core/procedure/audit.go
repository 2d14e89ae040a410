package procedure

import (
	"fmt"
	"strings"
	"time"
)

// AuditEntry is one append-only line in the incident's audit trail.
type AuditEntry struct {
	At      time.Time
	ActorID int64
	Actor   string
	Kind    string
	Message string
}

const (
	AuditStepExecuted   = "procedure.step_executed"
	AuditAssistanceSent = "procedure.assistance_requested"
	AuditFinished       = "procedure.finished"
)

// RenderExecutionMessage builds the human-readable trail message for a
// recorded execution. The wording varies by step type; repeatable
// steps note whether the execution is new or an in-place update.
func RenderExecutionMessage(def StepDefinition, exec Execution, formTitle string, updated bool) string {
	var msg string
	switch def.Type {
	case StepForm:
		title := strings.TrimSpace(formTitle)
		if title == "" {
			title = def.Title
		}
		msg = fmt.Sprintf("submitted form %q for step %q", title, def.Title)
	case StepRecordLink:
		cfg, _ := def.Config.(RecordLinkConfig)
		if exec.SelectedRecordID != nil {
			msg = fmt.Sprintf("selected record %q of type %q for step %q", exec.SelectedRecord, cfg.TargetType, def.Title)
		} else {
			msg = fmt.Sprintf("cleared record selection on step %q", def.Title)
		}
	case StepSelection:
		msg = fmt.Sprintf("completed step %q (%s)", def.Title, exec.Notes)
	default:
		msg = fmt.Sprintf("completed step %q", def.Title)
	}
	if def.AllowMultiple {
		if updated {
			msg += " (updated execution)"
		} else {
			msg += " (new execution)"
		}
	}
	return msg
}

// RenderAssistanceMessage names every notified actor in one entry.
func RenderAssistanceMessage(def StepDefinition, notified []string) string {
	return fmt.Sprintf("requested assistance with step %q, notified: %s", def.Title, strings.Join(notified, ", "))
}
