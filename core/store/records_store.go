package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"vigil-ird/core/procedure"
)

type Record struct {
	ID        int64           `json:"id"`
	Type      string          `json:"record_type"`
	Display   string          `json:"display"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecordsStore is the record directory: read-mostly lookup/search by
// type slug. The procedure engine only consumes Lookup.
type RecordsStore interface {
	CreateRecord(ctx context.Context, rec *Record) (int64, error)
	Search(ctx context.Context, typeSlug, query string, limit int) ([]Record, error)

	Lookup(ctx context.Context, typeSlug string, recordID int64) (*procedure.SelectedRecord, error)
}

type recordsStore struct {
	db *sql.DB
}

func NewRecordsStore(db *sql.DB) RecordsStore {
	return &recordsStore{db: db}
}

func (s *recordsStore) CreateRecord(ctx context.Context, rec *Record) (int64, error) {
	meta := rec.Meta
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records(record_type, display, meta_json, created_at) VALUES(?,?,?,?)`,
		strings.ToLower(strings.TrimSpace(rec.Type)), rec.Display, string(meta), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *recordsStore) Search(ctx context.Context, typeSlug, query string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	sqlQuery := `SELECT id, record_type, display, meta_json, created_at FROM records WHERE record_type=?`
	args := []any{strings.ToLower(strings.TrimSpace(typeSlug))}
	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += ` AND display LIKE ?`
		args = append(args, "%"+q+"%")
	}
	sqlQuery += ` ORDER BY display LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		var rec Record
		var meta string
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Display, &meta, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Meta = json.RawMessage(meta)
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (s *recordsStore) Lookup(ctx context.Context, typeSlug string, recordID int64) (*procedure.SelectedRecord, error) {
	var rec procedure.SelectedRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display FROM records WHERE id=? AND record_type=?`,
		recordID, strings.ToLower(strings.TrimSpace(typeSlug))).
		Scan(&rec.ID, &rec.Display)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
