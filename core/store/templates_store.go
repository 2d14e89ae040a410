package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vigil-ird/core/procedure"
)

type ProcedureTemplate struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TemplatesStore interface {
	CreateTemplate(ctx context.Context, tpl *ProcedureTemplate, steps []procedure.StepDefinition) (int64, error)
	ListTemplates(ctx context.Context) ([]ProcedureTemplate, error)
	// TemplateForCategory resolves the template a category is linked
	// to; incidents created under that category get a procedure
	// instance copied from it.
	TemplateForCategory(ctx context.Context, category string) (*procedure.Template, error)

	// GetTemplate is the engine's TemplateCatalog contract.
	GetTemplate(ctx context.Context, templateID int64) (*procedure.Template, error)
}

type templatesStore struct {
	db *sql.DB
}

func NewTemplatesStore(db *sql.DB) TemplatesStore {
	return &templatesStore{db: db}
}

// stepConfigJSON is the flattened storage shape of the per-type config
// union, matching the wire field names.
type stepConfigJSON struct {
	FormID      *int64                      `json:"form_id,omitempty"`
	Options     []procedure.SelectionOption `json:"selection_options,omitempty"`
	TargetType  string                      `json:"target_record_type,omitempty"`
	DocumentURL string                      `json:"document_url,omitempty"`
}

func marshalStepConfig(cfg procedure.StepConfig) (string, error) {
	var out stepConfigJSON
	switch c := cfg.(type) {
	case nil:
	case procedure.SelectionConfig:
		out.Options = c.Options
	case procedure.FormConfig:
		id := c.FormID
		out.FormID = &id
	case procedure.RecordLinkConfig:
		out.TargetType = c.TargetType
	case procedure.DocumentConfig:
		out.DocumentURL = c.URL
	default:
		return "", fmt.Errorf("unsupported step config %T", cfg)
	}
	raw, err := json.Marshal(out)
	return string(raw), err
}

func unmarshalStepConfig(stepType procedure.StepType, raw string) (procedure.StepConfig, error) {
	var in stepConfigJSON
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return nil, err
		}
	}
	switch stepType {
	case procedure.StepSelection:
		return procedure.SelectionConfig{Options: in.Options}, nil
	case procedure.StepForm:
		if in.FormID == nil {
			return nil, fmt.Errorf("form step missing form_id")
		}
		return procedure.FormConfig{FormID: *in.FormID}, nil
	case procedure.StepRecordLink:
		return procedure.RecordLinkConfig{TargetType: in.TargetType}, nil
	case procedure.StepDocument:
		return procedure.DocumentConfig{URL: in.DocumentURL}, nil
	}
	return nil, nil
}

func (s *templatesStore) CreateTemplate(ctx context.Context, tpl *ProcedureTemplate, steps []procedure.StepDefinition) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO procedure_templates(name, category, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?)`,
		tpl.Name, strings.ToLower(strings.TrimSpace(tpl.Category)), tpl.CreatedBy, now, now)
	if err != nil {
		return 0, err
	}
	templateID, _ := res.LastInsertId()
	tpl.ID = templateID
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	for i, def := range steps {
		if _, err := procedure.ParseStepType(string(def.Type)); err != nil {
			return 0, err
		}
		cfgJSON, err := marshalStepConfig(def.Config)
		if err != nil {
			return 0, err
		}
		roles, err := json.Marshal(def.AllowedRoles)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_steps(template_id, position, title, description, is_required, step_type, config_json, allow_multiple, role_restriction_enabled, allowed_roles)
			VALUES(?,?,?,?,?,?,?,?,?,?)`,
			templateID, i+1, def.Title, def.Description, boolToInt(def.Required), string(def.Type),
			cfgJSON, boolToInt(def.AllowMultiple), boolToInt(def.RoleRestricted), string(roles)); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return templateID, nil
}

func (s *templatesStore) ListTemplates(ctx context.Context) ([]ProcedureTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, created_by, created_at, updated_at FROM procedure_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProcedureTemplate
	for rows.Next() {
		var tpl ProcedureTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Category, &tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, tpl)
	}
	return items, rows.Err()
}

func (s *templatesStore) GetTemplate(ctx context.Context, templateID int64) (*procedure.Template, error) {
	var tpl procedure.Template
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM procedure_templates WHERE id=?`, templateID).
		Scan(&tpl.ID, &tpl.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	steps, err := s.templateSteps(ctx, templateID)
	if err != nil {
		return nil, err
	}
	tpl.Steps = steps
	return &tpl, nil
}

func (s *templatesStore) TemplateForCategory(ctx context.Context, category string) (*procedure.Template, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM procedure_templates WHERE category=? ORDER BY id LIMIT 1`,
		strings.ToLower(strings.TrimSpace(category))).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

func (s *templatesStore) templateSteps(ctx context.Context, templateID int64) ([]procedure.StepDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, is_required, step_type, config_json, allow_multiple, role_restriction_enabled, allowed_roles
		FROM template_steps WHERE template_id=? ORDER BY position`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []procedure.StepDefinition
	for rows.Next() {
		var def procedure.StepDefinition
		var required, multiple, restricted int
		var stepType, cfgJSON, rolesJSON string
		if err := rows.Scan(&def.ID, &def.Title, &def.Description, &required, &stepType, &cfgJSON, &multiple, &restricted, &rolesJSON); err != nil {
			return nil, err
		}
		st, err := procedure.ParseStepType(stepType)
		if err != nil {
			return nil, err
		}
		def.Type = st
		def.Required = required != 0
		def.AllowMultiple = multiple != 0
		def.RoleRestricted = restricted != 0
		if err := json.Unmarshal([]byte(rolesJSON), &def.AllowedRoles); err != nil {
			return nil, err
		}
		cfg, err := unmarshalStepConfig(st, cfgJSON)
		if err != nil {
			return nil, fmt.Errorf("template %d step %q: %w", templateID, def.Title, err)
		}
		def.Config = cfg
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
