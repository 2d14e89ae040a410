package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Form struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Schema    json.RawMessage `json:"schema"`
	CreatedAt time.Time       `json:"created_at"`
}

type FormSubmission struct {
	ID        int64          `json:"id"`
	FormID    int64          `json:"form_id"`
	Data      map[string]any `json:"data"`
	CreatedBy int64          `json:"created_by"`
	UpdatedBy int64          `json:"updated_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type FormsStore interface {
	CreateForm(ctx context.Context, form *Form) (int64, error)
	GetForm(ctx context.Context, id int64) (*Form, error)
	GetSubmission(ctx context.Context, id int64) (*FormSubmission, error)

	// Engine FormStore contract.
	FormTitle(ctx context.Context, formID int64) (string, error)
	CreateSubmission(ctx context.Context, formID, actorID int64, data map[string]any) (int64, error)
	UpdateSubmission(ctx context.Context, submissionID, actorID int64, data map[string]any) error
}

type formsStore struct {
	db *sql.DB
}

func NewFormsStore(db *sql.DB) FormsStore {
	return &formsStore{db: db}
}

func (s *formsStore) CreateForm(ctx context.Context, form *Form) (int64, error) {
	now := time.Now().UTC()
	schema := form.Schema
	if len(schema) == 0 {
		schema = json.RawMessage(`{}`)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO forms(title, schema_json, created_at) VALUES(?,?,?)`,
		form.Title, string(schema), now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *formsStore) GetForm(ctx context.Context, id int64) (*Form, error) {
	var f Form
	var schema string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, schema_json, created_at FROM forms WHERE id=?`, id).
		Scan(&f.ID, &f.Title, &schema, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Schema = json.RawMessage(schema)
	return &f, nil
}

func (s *formsStore) FormTitle(ctx context.Context, formID int64) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM forms WHERE id=?`, formID).Scan(&title)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return title, err
}

func (s *formsStore) CreateSubmission(ctx context.Context, formID, actorID int64, data map[string]any) (int64, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM forms WHERE id=?`, formID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO form_submissions(form_id, data_json, created_by, updated_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?)`,
		formID, string(raw), actorID, actorID, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *formsStore) UpdateSubmission(ctx context.Context, submissionID, actorID int64, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE form_submissions SET data_json=?, updated_by=?, updated_at=? WHERE id=?`,
		string(raw), actorID, time.Now().UTC(), submissionID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *formsStore) GetSubmission(ctx context.Context, id int64) (*FormSubmission, error) {
	var sub FormSubmission
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, data_json, created_by, updated_by, created_at, updated_at
		FROM form_submissions WHERE id=?`, id).
		Scan(&sub.ID, &sub.FormID, &data, &sub.CreatedBy, &sub.UpdatedBy, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &sub.Data); err != nil {
		return nil, err
	}
	return &sub, nil
}
