package store

import (
	"context"
	"testing"

	"vigil-ird/core/procedure"
)

func TestTemplateRoundTrip(t *testing.T) {
	db := newTestDB(t)
	templates := NewTemplatesStore(db)
	ctx := context.Background()

	tpl := &ProcedureTemplate{Name: "Phishing response", Category: "Phishing"}
	steps := []procedure.StepDefinition{
		{Title: "Triage report", Required: true, Type: procedure.StepBasic},
		{Title: "Verdict", Required: true, Type: procedure.StepSelection, Config: procedure.SelectionConfig{
			Options: []procedure.SelectionOption{
				{Value: "malicious", Label: "Malicious"},
				{Value: "benign", Label: "Benign"},
			},
		}},
		{Title: "Containment report", Required: true, Type: procedure.StepForm,
			Config: procedure.FormConfig{FormID: 3}, AllowMultiple: true},
		{Title: "Link affected asset", Type: procedure.StepRecordLink,
			Config: procedure.RecordLinkConfig{TargetType: "asset"}},
		{Title: "Review runbook", Type: procedure.StepDocument,
			Config:         procedure.DocumentConfig{URL: "https://wiki/runbooks/phishing"},
			RoleRestricted: true, AllowedRoles: []string{"responder"}},
	}
	id, err := templates.CreateTemplate(ctx, tpl, steps)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	got, err := templates.GetTemplate(ctx, id)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got == nil || got.Name != "Phishing response" {
		t.Fatalf("template = %+v", got)
	}
	if len(got.Steps) != len(steps) {
		t.Fatalf("steps = %d, want %d", len(got.Steps), len(steps))
	}
	for i, def := range got.Steps {
		if def.ID == 0 {
			t.Fatalf("step %d has no id", i)
		}
		if def.Title != steps[i].Title || def.Type != steps[i].Type {
			t.Fatalf("step %d = %+v, want %+v", i, def, steps[i])
		}
	}
	if cfg, ok := got.Steps[1].Config.(procedure.SelectionConfig); !ok || len(cfg.Options) != 2 {
		t.Fatalf("selection config = %+v", got.Steps[1].Config)
	}
	if cfg, ok := got.Steps[2].Config.(procedure.FormConfig); !ok || cfg.FormID != 3 {
		t.Fatalf("form config = %+v", got.Steps[2].Config)
	}
	if cfg, ok := got.Steps[3].Config.(procedure.RecordLinkConfig); !ok || cfg.TargetType != "asset" {
		t.Fatalf("record link config = %+v", got.Steps[3].Config)
	}
	if cfg, ok := got.Steps[4].Config.(procedure.DocumentConfig); !ok || cfg.URL == "" {
		t.Fatalf("document config = %+v", got.Steps[4].Config)
	}
	last := got.Steps[4]
	if !last.RoleRestricted || len(last.AllowedRoles) != 1 || last.AllowedRoles[0] != "responder" {
		t.Fatalf("role restriction = %+v", last)
	}
}

func TestTemplateForCategory(t *testing.T) {
	db := newTestDB(t)
	templates := NewTemplatesStore(db)
	ctx := context.Background()

	tpl := &ProcedureTemplate{Name: "Malware response", Category: "malware"}
	if _, err := templates.CreateTemplate(ctx, tpl, []procedure.StepDefinition{
		{Title: "Isolate host", Required: true, Type: procedure.StepBasic},
	}); err != nil {
		t.Fatalf("create template: %v", err)
	}

	got, err := templates.TemplateForCategory(ctx, "Malware")
	if err != nil {
		t.Fatalf("template for category: %v", err)
	}
	if got == nil || got.Name != "Malware response" || len(got.Steps) != 1 {
		t.Fatalf("template = %+v", got)
	}

	none, err := templates.TemplateForCategory(ctx, "unknown")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no template, got %+v", none)
	}
}

func TestCreateTemplateRejectsUnknownStepType(t *testing.T) {
	db := newTestDB(t)
	templates := NewTemplatesStore(db)

	_, err := templates.CreateTemplate(context.Background(), &ProcedureTemplate{Name: "Broken"},
		[]procedure.StepDefinition{{Title: "??", Type: procedure.StepType("mystery")}})
	if err == nil {
		t.Fatal("expected error for unknown step type")
	}
}
