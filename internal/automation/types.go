package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/amberhub/amber-core/internal/automation/condition"
	"github.com/amberhub/amber-core/internal/automation/trigger"
	"github.com/amberhub/amber-core/internal/script"
)

// Automation is a trigger/condition/action rule. Triggers, conditions
// and actions are stored as opaque config maps; the trigger, condition
// and script packages interpret them when the automation is enabled.
type Automation struct {
	// Identity
	ID    string `json:"id"`
	Alias string `json:"alias"`

	// Description (optional)
	Description string `json:"description,omitempty"`

	// Configuration
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`     // single, restart, queued, parallel
	MaxRuns int    `json:"max_runs"` // queued/parallel run limit

	// Behaviour
	Triggers   []trigger.Config      `json:"triggers"`
	Conditions []condition.Config    `json:"conditions,omitempty"`
	Actions    []script.ActionConfig `json:"actions"`

	// Runtime bookkeeping
	LastTriggered *time.Time `json:"last_triggered,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID returns the state-machine entity that represents this
// automation (on/off mirrors enabled, unavailable means it failed to
// load).
func (a *Automation) EntityID() string {
	return "automation." + a.ID
}

// DeepCopy creates a complete independent copy of the Automation.
// All config maps and slices are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (a *Automation) DeepCopy() *Automation {
	if a == nil {
		return nil
	}

	cpy := *a

	if a.LastTriggered != nil {
		t := *a.LastTriggered
		cpy.LastTriggered = &t
	}

	if a.Triggers != nil {
		cpy.Triggers = make([]trigger.Config, len(a.Triggers))
		for i, t := range a.Triggers {
			cpy.Triggers[i] = trigger.Config(deepCopyMap(t))
		}
	}
	if a.Conditions != nil {
		cpy.Conditions = make([]condition.Config, len(a.Conditions))
		for i, c := range a.Conditions {
			cpy.Conditions[i] = condition.Config(deepCopyMap(c))
		}
	}
	if a.Actions != nil {
		cpy.Actions = make([]script.ActionConfig, len(a.Actions))
		for i, act := range a.Actions {
			cpy.Actions[i] = script.ActionConfig(deepCopyMap(act))
		}
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}

// GenerateID creates a new UUID for an automation.
func GenerateID() string {
	return uuid.New().String()
}
