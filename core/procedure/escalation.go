package procedure

import (
	"context"
	"fmt"
	"strings"

	"vigil-ird/core/utils"
)

// EscalationState tracks one assistance request through its lifecycle.
type EscalationState string

const (
	EscalationIdle              EscalationState = "idle"
	EscalationResolving         EscalationState = "resolving"
	EscalationNoEligible        EscalationState = "no_eligible"
	EscalationAwaitingSelection EscalationState = "awaiting_selection"
	EscalationDispatching       EscalationState = "dispatching"
	EscalationSent              EscalationState = "sent"
	EscalationFailed            EscalationState = "failed"
)

// Escalation is a resolved assistance request awaiting recipient
// selection.
type Escalation struct {
	State          EscalationState `json:"state"`
	IncidentID     int64           `json:"incident_id"`
	IncidentRegNo  string          `json:"incident_reg_no"`
	StepID         int64           `json:"step_id"`
	StepTitle      string          `json:"step_title"`
	Requester      string          `json:"requester"`
	Eligible       []RosterUser    `json:"eligible"`
	Roles          []Role          `json:"roles,omitempty"`
	DefaultMessage string          `json:"default_message"`
}

// NotificationResult reports a dispatch outcome. Partial success is a
// normal result: failures are per recipient and do not roll back the
// notifications that were created.
type NotificationResult struct {
	State    EscalationState   `json:"state"`
	Notified []RosterUser      `json:"notified"`
	Failures []DispatchFailure `json:"failures,omitempty"`
}

// EscalationNotifier resolves role-eligible on-duty substitutes for a
// restricted step and dispatches high-priority notifications to the
// selected ones.
type EscalationNotifier struct {
	roster          Roster
	sink            NotificationSink
	roles           RoleDirectory
	audit           AuditLog
	logger          *utils.Logger
	baseURL         string
	messageTemplate string
}

func NewEscalationNotifier(roster Roster, sink NotificationSink, roles RoleDirectory, audit AuditLog, baseURL, messageTemplate string, logger *utils.Logger) *EscalationNotifier {
	return &EscalationNotifier{
		roster:          roster,
		sink:            sink,
		roles:           roles,
		audit:           audit,
		logger:          logger,
		baseURL:         strings.TrimRight(baseURL, "/"),
		messageTemplate: messageTemplate,
	}
}

// Resolve computes the eligible actor set: users on an active shift
// whose role set intersects the step's allowed roles. An empty result
// is a normal outcome, not an error.
func (n *EscalationNotifier) Resolve(ctx context.Context, inc IncidentRef, def StepDefinition, requester Actor) (*Escalation, error) {
	esc := &Escalation{
		State:          EscalationResolving,
		IncidentID:     inc.ID,
		IncidentRegNo:  inc.RegNo,
		StepID:         def.ID,
		StepTitle:      def.Title,
		Requester:      requester.DisplayName(),
		DefaultMessage: n.defaultMessage(inc, def, requester),
	}
	onDuty, err := n.roster.ActiveUsersNow(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve roster", Err: err}
	}
	for _, u := range onDuty {
		if u.ID == requester.ID {
			continue
		}
		if rolesIntersect(u.Roles, def.AllowedRoles) {
			esc.Eligible = append(esc.Eligible, u)
		}
	}
	if n.roles != nil {
		if all, err := n.roles.ListRoles(ctx); err == nil {
			for _, role := range all {
				for _, name := range def.AllowedRoles {
					if role.Name == name {
						esc.Roles = append(esc.Roles, role)
					}
				}
			}
		}
	}
	if len(esc.Eligible) == 0 {
		esc.State = EscalationNoEligible
		return esc, nil
	}
	esc.State = EscalationAwaitingSelection
	return esc, nil
}

// Dispatch creates one notification per selected recipient. A failed
// request does not roll back the others; the result carries both the
// notified set and the per-recipient failures.
func (n *EscalationNotifier) Dispatch(ctx context.Context, esc *Escalation, selected []int64, message string) (*NotificationResult, error) {
	if esc == nil || esc.State != EscalationAwaitingSelection {
		return nil, validationErr("escalation", "nothing to dispatch")
	}
	recipients := make([]RosterUser, 0, len(selected))
	eligible := make(map[int64]RosterUser, len(esc.Eligible))
	for _, u := range esc.Eligible {
		eligible[u.ID] = u
	}
	for _, id := range selected {
		u, ok := eligible[id]
		if !ok {
			return nil, validationErr("recipients", fmt.Sprintf("user %d is not eligible", id))
		}
		recipients = append(recipients, u)
	}
	if len(recipients) == 0 {
		return nil, validationErr("recipients", "at least one recipient required")
	}
	if strings.TrimSpace(message) == "" {
		message = esc.DefaultMessage
	}

	esc.State = EscalationDispatching
	result := &NotificationResult{State: EscalationDispatching}
	deepLink := fmt.Sprintf("%s/incidents/%d?step=%d", n.baseURL, esc.IncidentID, esc.StepID)
	for _, u := range recipients {
		err := n.sink.Create(ctx, Notification{
			UserID:   u.ID,
			Title:    fmt.Sprintf("Assistance needed on %s", esc.IncidentRegNo),
			Message:  message,
			Priority: PriorityHigh,
			DeepLink: deepLink,
		})
		if err != nil {
			result.Failures = append(result.Failures, DispatchFailure{UserID: u.ID, Reason: err.Error()})
			continue
		}
		result.Notified = append(result.Notified, u)
	}
	if len(result.Notified) == 0 {
		result.State = EscalationFailed
		esc.State = EscalationFailed
		return result, nil
	}
	result.State = EscalationSent
	esc.State = EscalationSent

	names := make([]string, 0, len(result.Notified))
	for _, u := range result.Notified {
		names = append(names, u.Username)
	}
	def := StepDefinition{ID: esc.StepID, Title: esc.StepTitle}
	entry := AuditEntry{
		At:      utils.NowUTC(),
		Actor:   esc.Requester,
		Kind:    AuditAssistanceSent,
		Message: RenderAssistanceMessage(def, names),
	}
	if n.audit != nil {
		if err := n.audit.Append(ctx, esc.IncidentID, entry); err != nil && n.logger != nil {
			n.logger.Errorf("escalation audit append: %v", err)
		}
	}
	return result, nil
}

func (n *EscalationNotifier) defaultMessage(inc IncidentRef, def StepDefinition, requester Actor) string {
	tpl := n.messageTemplate
	if strings.TrimSpace(tpl) == "" {
		tpl = `{requester} needs assistance with step "{step}" on incident {incident}.`
	}
	msg := strings.ReplaceAll(tpl, "{step}", def.Title)
	msg = strings.ReplaceAll(msg, "{incident}", inc.RegNo)
	msg = strings.ReplaceAll(msg, "{requester}", requester.DisplayName())
	return msg
}
