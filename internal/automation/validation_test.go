package automation

import (
	"errors"
	"strings"
	"testing"

	"github.com/amberhub/amber-core/internal/automation/trigger"
	"github.com/amberhub/amber-core/internal/script"
)

func validAutomation() *Automation {
	return &Automation{
		ID:      GenerateID(),
		Alias:   "Morning lights",
		Enabled: true,
		Mode:    script.ModeSingle,
		MaxRuns: 10,
		Triggers: []trigger.Config{
			{"platform": "event", "event_type": "sunrise"},
		},
		Actions: []script.ActionConfig{
			{"service": "light.turn_on", "entity_id": "light.hall"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Automation)
		wantErr error
	}{
		{"valid", func(*Automation) {}, nil},
		{"empty mode defaults later", func(a *Automation) { a.Mode = "" }, nil},
		{"empty alias", func(a *Automation) { a.Alias = "  " }, ErrInvalidAutomation},
		{"alias too long", func(a *Automation) { a.Alias = strings.Repeat("x", maxAliasLength+1) }, ErrInvalidAutomation},
		{"bad mode", func(a *Automation) { a.Mode = "sideways" }, ErrInvalidAutomation},
		{"negative max_runs", func(a *Automation) { a.MaxRuns = -1 }, ErrInvalidAutomation},
		{"no triggers", func(a *Automation) { a.Triggers = nil }, ErrNoTriggers},
		{"no actions", func(a *Automation) { a.Actions = nil }, ErrNoActions},
		{"description too long", func(a *Automation) { a.Description = strings.Repeat("x", maxDescriptionLen+1) }, ErrInvalidAutomation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAutomation()
			tt.mutate(a)
			err := Validate(a)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrInvalidAutomation) {
		t.Errorf("Validate(nil) error = %v, want ErrInvalidAutomation", err)
	}
}

func TestDeepCopyIsolation(t *testing.T) {
	a := validAutomation()
	a.Triggers[0]["event_data"] = map[string]any{"zone": "hall"}

	cpy := a.DeepCopy()
	cpy.Alias = "changed"
	cpy.Triggers[0]["platform"] = "mqtt"
	cpy.Triggers[0]["event_data"].(map[string]any)["zone"] = "garage"
	cpy.Actions[0]["service"] = "light.turn_off"

	if a.Alias != "Morning lights" {
		t.Error("alias mutated through copy")
	}
	if a.Triggers[0]["platform"] != "event" {
		t.Error("trigger config mutated through copy")
	}
	if a.Triggers[0]["event_data"].(map[string]any)["zone"] != "hall" {
		t.Error("nested trigger data mutated through copy")
	}
	if a.Actions[0]["service"] != "light.turn_on" {
		t.Error("action config mutated through copy")
	}
}
