package store

import (
	"context"

	"vigil-ird/core/procedure"
)

// Adapters bridging the SQL stores to the procedure engine's
// collaborator contracts where the shapes differ.

type procedureTrail struct {
	incidents IncidentsStore
}

// NewProcedureTrail exposes the incident timeline as the engine's
// append-only audit log.
func NewProcedureTrail(incidents IncidentsStore) procedure.AuditLog {
	return &procedureTrail{incidents: incidents}
}

func (t *procedureTrail) Append(ctx context.Context, incidentID int64, entry procedure.AuditEntry) error {
	_, err := t.incidents.AddIncidentTimeline(ctx, &IncidentTimelineEvent{
		IncidentID: incidentID,
		EventType:  entry.Kind,
		Message:    entry.Message,
		ActorID:    entry.ActorID,
		Actor:      entry.Actor,
		EventAt:    entry.At,
	})
	return err
}

type notificationSink struct {
	notifications NotificationsStore
}

// NewNotificationSink adapts the notifications store to the engine's
// escalation sink.
func NewNotificationSink(notifications NotificationsStore) procedure.NotificationSink {
	return &notificationSink{notifications: notifications}
}

func (s *notificationSink) Create(ctx context.Context, n procedure.Notification) error {
	_, err := s.notifications.CreateNotification(ctx, &Notification{
		UserID:   n.UserID,
		Title:    n.Title,
		Message:  n.Message,
		Priority: n.Priority,
		DeepLink: n.DeepLink,
	})
	return err
}

type incidentCloser struct {
	incidents IncidentsStore
}

// NewIncidentCloser adapts incident closing to the engine's completion
// signal consumer.
func NewIncidentCloser(incidents IncidentsStore) procedure.Closer {
	return &incidentCloser{incidents: incidents}
}

func (c *incidentCloser) ProcedureFinished(ctx context.Context, incidentID, actorID int64) error {
	_, err := c.incidents.CloseIncident(ctx, incidentID, actorID)
	return err
}
