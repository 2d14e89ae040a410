package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil-ird/core/procedure"
)

var ErrConflict = errors.New("conflict")
var ErrNotFound = errors.New("not found")

type Incident struct {
	ID          int64      `json:"id"`
	RegNo       string     `json:"reg_no"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Category    string     `json:"category,omitempty"`
	TemplateID  *int64     `json:"template_id,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	ClosedBy    *int64     `json:"closed_by,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	UpdatedBy   int64      `json:"updated_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type IncidentTimelineEvent struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incident_id"`
	EventType  string    `json:"event_type"`
	Message    string    `json:"message"`
	ActorID    int64     `json:"actor_id"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
	EventAt    time.Time `json:"event_at"`
}

type IncidentFilter struct {
	Search   string
	Status   string
	Severity string
	Limit    int
	Offset   int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident, steps []procedure.StepState, regFormat string) (int64, error)
	UpdateIncident(ctx context.Context, incident *Incident, expectedVersion int) error
	CloseIncident(ctx context.Context, incidentID, userID int64) (*Incident, error)
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)

	// Procedure collaborators (engine contract). SaveProcedureStep is
	// step-scoped and silent: one row per (incident_id, step_id), so
	// writers on different steps never clobber each other and no
	// incident-level audit is emitted.
	GetProcedureIncident(ctx context.Context, incidentID int64) (*procedure.IncidentRef, error)
	SaveProcedureStep(ctx context.Context, incidentID int64, step procedure.StepState) error

	ListIncidentTimeline(ctx context.Context, incidentID int64, limit int) ([]IncidentTimelineEvent, error)
	AddIncidentTimeline(ctx context.Context, ev *IncidentTimelineEvent) (int64, error)
}

type incidentsStore struct {
	db *sql.DB
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db}
}

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident, steps []procedure.StepState, regFormat string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	if strings.TrimSpace(incident.RegNo) == "" {
		seq, err := s.nextIncidentSeqTx(ctx, tx, now.Year())
		if err != nil {
			return 0, err
		}
		incident.RegNo = buildIncidentRegNo(regFormat, now.Year(), seq)
	}
	if incident.Version <= 0 {
		incident.Version = 1
	}
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = "open"
	}
	if strings.TrimSpace(incident.Severity) == "" {
		incident.Severity = "medium"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO incidents(reg_no, title, description, severity, status, category, template_id, created_by, updated_by, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		incident.RegNo, incident.Title, incident.Description, incident.Severity, incident.Status,
		strings.TrimSpace(incident.Category), incident.TemplateID, incident.CreatedBy, incident.UpdatedBy, now, now, incident.Version)
	if err != nil {
		return 0, err
	}
	incidentID, _ := res.LastInsertId()
	incident.ID = incidentID
	incident.CreatedAt = now
	incident.UpdatedAt = now
	for _, step := range steps {
		raw, err := json.Marshal(step)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO incident_steps(incident_id, step_id, state_json, updated_at) VALUES(?,?,?,?)`,
			incidentID, step.StepID, string(raw), now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return incidentID, nil
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, incident *Incident, expectedVersion int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET title=?, description=?, severity=?, status=?, category=?, updated_by=?, updated_at=?, version=version+1
		WHERE id=? AND version=? AND deleted_at IS NULL`,
		incident.Title, incident.Description, incident.Severity, incident.Status, incident.Category,
		incident.UpdatedBy, now, incident.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	incident.Version = expectedVersion + 1
	incident.UpdatedAt = now
	return nil
}

func (s *incidentsStore) CloseIncident(ctx context.Context, incidentID, userID int64) (*Incident, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET status=?, closed_at=?, closed_by=?, updated_by=?, updated_at=?, version=version+1
		WHERE id=? AND status<>? AND deleted_at IS NULL`,
		procedure.StatusClosed, now, userID, userID, now, incidentID, procedure.StatusClosed)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}
	return s.GetIncident(ctx, incidentID)
}

const incidentColumns = `id, reg_no, title, description, severity, status, category, template_id, closed_at, closed_by, created_by, updated_by, created_at, updated_at, version, deleted_at`

func scanIncident(row interface{ Scan(...any) error }) (*Incident, error) {
	var inc Incident
	err := row.Scan(&inc.ID, &inc.RegNo, &inc.Title, &inc.Description, &inc.Severity, &inc.Status,
		&inc.Category, &inc.TemplateID, &inc.ClosedAt, &inc.ClosedBy, &inc.CreatedBy, &inc.UpdatedBy,
		&inc.CreatedAt, &inc.UpdatedAt, &inc.Version, &inc.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id)
	return scanIncident(row)
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE deleted_at IS NULL`
	var args []any
	if q := strings.TrimSpace(filter.Search); q != "" {
		query += ` AND (title LIKE ? OR reg_no LIKE ?)`
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	if filter.Status != "" {
		query += ` AND status=?`
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		query += ` AND severity=?`
		args = append(args, filter.Severity)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *inc)
	}
	return items, rows.Err()
}

func (s *incidentsStore) GetProcedureIncident(ctx context.Context, incidentID int64) (*procedure.IncidentRef, error) {
	inc, err := s.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil || inc.DeletedAt != nil {
		return nil, nil
	}
	ref := &procedure.IncidentRef{
		ID:     inc.ID,
		RegNo:  inc.RegNo,
		Title:  inc.Title,
		Status: inc.Status,
	}
	if inc.TemplateID != nil {
		ref.TemplateID = *inc.TemplateID
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT state_json FROM incident_steps WHERE incident_id=? ORDER BY step_id`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var state procedure.StepState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("incident %d step state: %w", incidentID, err)
		}
		ref.Steps = append(ref.Steps, state)
	}
	return ref, rows.Err()
}

func (s *incidentsStore) SaveProcedureStep(ctx context.Context, incidentID int64, step procedure.StepState) error {
	raw, err := json.Marshal(step)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM incidents WHERE id=? AND deleted_at IS NULL`, incidentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE incident_steps SET state_json=?, updated_at=? WHERE incident_id=? AND step_id=?`,
		string(raw), now, incidentID, step.StepID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO incident_steps(incident_id, step_id, state_json, updated_at) VALUES(?,?,?,?)`,
			incidentID, step.StepID, string(raw), now); err != nil {
			return err
		}
	}
	// The step write is silent: the incident row is only touched to
	// move updated_at, never its status or audit surface.
	if _, err := tx.ExecContext(ctx, `UPDATE incidents SET updated_at=? WHERE id=?`, now, incidentID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *incidentsStore) ListIncidentTimeline(ctx context.Context, incidentID int64, limit int) ([]IncidentTimelineEvent, error) {
	query := `SELECT id, incident_id, event_type, message, actor_id, actor, created_at, event_at
		FROM incident_timeline WHERE incident_id=? ORDER BY event_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []IncidentTimelineEvent
	for rows.Next() {
		var ev IncidentTimelineEvent
		if err := rows.Scan(&ev.ID, &ev.IncidentID, &ev.EventType, &ev.Message, &ev.ActorID, &ev.Actor, &ev.CreatedAt, &ev.EventAt); err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

func (s *incidentsStore) AddIncidentTimeline(ctx context.Context, ev *IncidentTimelineEvent) (int64, error) {
	now := time.Now().UTC()
	if ev.EventAt.IsZero() {
		ev.EventAt = now
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_timeline(incident_id, event_type, message, actor_id, actor, created_at, event_at)
		VALUES(?,?,?,?,?,?,?)`,
		ev.IncidentID, ev.EventType, ev.Message, ev.ActorID, ev.Actor, now, ev.EventAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *incidentsStore) nextIncidentSeqTx(ctx context.Context, tx *sql.Tx, year int) (int, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `SELECT seq FROM incident_seq WHERE year=?`, year).Scan(&seq)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO incident_seq(year, seq) VALUES(?,1)`, year); err != nil {
			return 0, err
		}
		return 1, nil
	case err != nil:
		return 0, err
	}
	seq++
	if _, err := tx.ExecContext(ctx, `UPDATE incident_seq SET seq=? WHERE year=?`, seq, year); err != nil {
		return 0, err
	}
	return seq, nil
}

// buildIncidentRegNo renders formats like "INC-{year}-{seq:05}".
func buildIncidentRegNo(format string, year, seq int) string {
	out := strings.TrimSpace(format)
	if out == "" {
		out = "INC-{year}-{seq:05}"
	}
	out = strings.ReplaceAll(out, "{year}", fmt.Sprintf("%d", year))
	if idx := strings.Index(out, "{seq:"); idx >= 0 {
		end := strings.Index(out[idx:], "}")
		if end > 0 {
			spec := out[idx+5 : idx+end]
			width := 0
			fmt.Sscanf(spec, "%d", &width)
			if width > 0 {
				out = out[:idx] + fmt.Sprintf("%0*d", width, seq) + out[idx+end+1:]
				return out
			}
		}
	}
	return strings.ReplaceAll(out, "{seq}", fmt.Sprintf("%d", seq))
}
