package procedure

import (
	"encoding/json"
	"testing"
)

func TestStepDefinitionConfigRoundTrip(t *testing.T) {
	tpl := testTemplate()
	raw, err := json.Marshal(tpl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Template
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	form, _ := back.Step(4)
	cfg, ok := form.Config.(FormConfig)
	if !ok || cfg.FormID != 7 {
		t.Fatalf("form config lost: %#v", form.Config)
	}
	link, _ := back.Step(5)
	if rc, ok := link.Config.(RecordLinkConfig); !ok || rc.TargetType != "asset" {
		t.Fatalf("record link config lost: %#v", link.Config)
	}
}

func TestStepDefinitionRejectsUnknownType(t *testing.T) {
	var def StepDefinition
	if err := json.Unmarshal([]byte(`{"id":1,"title":"x","step_type":"loop"}`), &def); err == nil {
		t.Fatalf("expected error for unknown step type")
	}
}

func TestNewInstance(t *testing.T) {
	tpl := testTemplate()
	steps := NewInstance(*tpl)
	if len(steps) != len(tpl.Steps) {
		t.Fatalf("instance has %d steps, template has %d", len(steps), len(tpl.Steps))
	}
	for i, s := range steps {
		if s.StepID != tpl.Steps[i].ID {
			t.Fatalf("step_id join broken at %d", i)
		}
		if s.Completed || len(s.Executions) != 0 {
			t.Fatalf("fresh instance step not empty: %+v", s)
		}
	}
}
