package procedure

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StepType enumerates the supported step kinds. The zero value is invalid.
type StepType string

const (
	StepBasic      StepType = "basic"
	StepText       StepType = "text"
	StepSelection  StepType = "selection"
	StepForm       StepType = "form"
	StepRecordLink StepType = "record_link"
	StepDocument   StepType = "document"
)

func ParseStepType(raw string) (StepType, error) {
	st := StepType(strings.ToLower(strings.TrimSpace(raw)))
	switch st {
	case StepBasic, StepText, StepSelection, StepForm, StepRecordLink, StepDocument:
		return st, nil
	}
	return "", fmt.Errorf("unknown step type %q", raw)
}

// StepConfig is the per-type configuration variant. Basic, text and
// document-less variants carry no payload and use a nil config.
type StepConfig interface {
	stepType() StepType
}

type SelectionOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type SelectionConfig struct {
	Options []SelectionOption
}

func (SelectionConfig) stepType() StepType { return StepSelection }

type FormConfig struct {
	FormID int64
}

func (FormConfig) stepType() StepType { return StepForm }

type RecordLinkConfig struct {
	// TargetType is the record directory type slug the step links to.
	TargetType string
}

func (RecordLinkConfig) stepType() StepType { return StepRecordLink }

type DocumentConfig struct {
	URL string
}

func (DocumentConfig) stepType() StepType { return StepDocument }

// StepDefinition is one immutable step of a procedure template.
type StepDefinition struct {
	ID             int64
	Title          string
	Description    string
	Required       bool
	Type           StepType
	Config         StepConfig
	AllowMultiple  bool
	RoleRestricted bool
	AllowedRoles   []string
}

// stepDefinitionJSON is the wire shape: the config union is flattened into
// type-specific optional fields keyed by step_type.
type stepDefinitionJSON struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Required       bool              `json:"is_required"`
	Type           StepType          `json:"step_type"`
	FormID         *int64            `json:"form_id,omitempty"`
	Options        []SelectionOption `json:"selection_options,omitempty"`
	TargetType     string            `json:"target_record_type,omitempty"`
	DocumentURL    string            `json:"document_url,omitempty"`
	AllowMultiple  bool              `json:"allow_multiple_executions"`
	RoleRestricted bool              `json:"role_restriction_enabled"`
	AllowedRoles   []string          `json:"allowed_roles,omitempty"`
}

func (d StepDefinition) MarshalJSON() ([]byte, error) {
	out := stepDefinitionJSON{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Required:       d.Required,
		Type:           d.Type,
		AllowMultiple:  d.AllowMultiple,
		RoleRestricted: d.RoleRestricted,
		AllowedRoles:   d.AllowedRoles,
	}
	switch cfg := d.Config.(type) {
	case SelectionConfig:
		out.Options = cfg.Options
	case FormConfig:
		id := cfg.FormID
		out.FormID = &id
	case RecordLinkConfig:
		out.TargetType = cfg.TargetType
	case DocumentConfig:
		out.DocumentURL = cfg.URL
	}
	return json.Marshal(out)
}

func (d *StepDefinition) UnmarshalJSON(data []byte) error {
	var raw stepDefinitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseStepType(string(raw.Type))
	if err != nil {
		return err
	}
	d.ID = raw.ID
	d.Title = raw.Title
	d.Description = raw.Description
	d.Required = raw.Required
	d.Type = st
	d.AllowMultiple = raw.AllowMultiple
	d.RoleRestricted = raw.RoleRestricted
	d.AllowedRoles = raw.AllowedRoles
	d.Config = nil
	switch st {
	case StepSelection:
		d.Config = SelectionConfig{Options: raw.Options}
	case StepForm:
		if raw.FormID == nil {
			return fmt.Errorf("form step %q missing form_id", raw.Title)
		}
		d.Config = FormConfig{FormID: *raw.FormID}
	case StepRecordLink:
		d.Config = RecordLinkConfig{TargetType: raw.TargetType}
	case StepDocument:
		d.Config = DocumentConfig{URL: raw.DocumentURL}
	}
	return nil
}

// Option resolves a selection value against the step's configured options.
func (d StepDefinition) Option(value string) (SelectionOption, bool) {
	cfg, ok := d.Config.(SelectionConfig)
	if !ok {
		return SelectionOption{}, false
	}
	for _, opt := range cfg.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return SelectionOption{}, false
}

// Template is an immutable, ordered catalog of step definitions.
type Template struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Steps []StepDefinition `json:"steps"`
}

func (t Template) Step(stepID int64) (StepDefinition, bool) {
	for _, def := range t.Steps {
		if def.ID == stepID {
			return def, true
		}
	}
	return StepDefinition{}, false
}

// SelectedRecord is a directory record reference attached to a
// record_link execution.
type SelectedRecord struct {
	ID      int64  `json:"id"`
	Display string `json:"display"`
}

// Execution is one recorded act of performing a step. Immutable once
// created except for explicit in-place replacement by execution id.
type Execution struct {
	ID               string    `json:"execution_id"`
	CompletedAt      time.Time `json:"completed_at"`
	CompletedBy      int64     `json:"completed_by"`
	CompletedByName  string    `json:"completed_by_name,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	FormSubmissionID *int64    `json:"form_submission_id,omitempty"`
	SelectedRecordID *int64    `json:"selected_record_id,omitempty"`
	SelectedRecord   string    `json:"selected_record_label,omitempty"`
}

// StepState is the mutable per-incident state of one step definition.
// Field names are the wire contract with the surrounding UI and must
// round-trip through the incident store unchanged.
type StepState struct {
	StepID      int64       `json:"step_id"`
	Completed   bool        `json:"completed"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CompletedBy *int64      `json:"completed_by,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Executions  []Execution `json:"executions"`
}

func (s StepState) execution(id string) (int, bool) {
	for i, ex := range s.Executions {
		if ex.ID == id {
			return i, true
		}
	}
	return -1, false
}

// NewInstance copies a template catalog into initial step states. The
// step_id foreign key is set once here; there is no later name or
// position matching.
func NewInstance(t Template) []StepState {
	steps := make([]StepState, 0, len(t.Steps))
	for _, def := range t.Steps {
		steps = append(steps, StepState{StepID: def.ID, Executions: []Execution{}})
	}
	return steps
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID       int64
	Username string
	FullName string
	Roles    []string
}

func (a Actor) DisplayName() string {
	if strings.TrimSpace(a.FullName) != "" {
		return a.FullName
	}
	return a.Username
}

// RosterUser is an on-duty user as reported by the shift provider.
type RosterUser struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name,omitempty"`
	Roles    []string `json:"roles"`
}

// Role is a directory role used only for display resolution and
// role-set intersections.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IncidentRef is the engine's view of an incident: enough to locate the
// procedure instance and decide closability. Status values follow the
// incident store lifecycle; the evaluator only cares about "closed".
type IncidentRef struct {
	ID         int64
	RegNo      string
	Title      string
	Status     string
	TemplateID int64
	Steps      []StepState
}

const StatusClosed = "closed"

func (inc IncidentRef) StepState(stepID int64) (StepState, bool) {
	for _, s := range inc.Steps {
		if s.StepID == stepID {
			return s, true
		}
	}
	return StepState{}, false
}
