package state

import (
	"strings"
	"time"
)

// Common entity states.
//
// Entities are free to use domain-specific states (cover positions,
// sensor readings); these constants cover the states the hub itself
// assigns or inspects.
const (
	// StateUnknown means the entity exists but no value has been seen yet.
	StateUnknown = "unknown"

	// StateUnavailable means the entity's source is offline or its
	// configuration failed validation.
	StateUnavailable = "unavailable"

	StateOn  = "on"
	StateOff = "off"

	StateOpen    = "open"
	StateClosed  = "closed"
	StateOpening = "opening"
	StateClosing = "closing"
)

// EntityState is an immutable snapshot of one entity at one moment.
type EntityState struct {
	// EntityID identifies the entity, formatted as domain.object_id
	// (e.g. "light.living_room", "automation.morning_lights").
	EntityID string `json:"entity_id"`

	// State is the entity's primary value.
	State string `json:"state"`

	// Attributes carries additional entity data (brightness, position,
	// last_triggered). May be nil.
	Attributes map[string]any `json:"attributes,omitempty"`

	// LastChanged is when State last took a different value.
	LastChanged time.Time `json:"last_changed"`

	// LastUpdated is when State or Attributes were last written,
	// including writes that left State unchanged.
	LastUpdated time.Time `json:"last_updated"`
}

// Copy returns a deep copy of the state.
// Callers receive copies from the machine so cached entries cannot be
// mutated behind its back.
func (s *EntityState) Copy() *EntityState {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Attributes != nil {
		cp.Attributes = make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// Domain returns the domain portion of an entity ID.
// "light.living_room" yields "light". An ID without a dot yields "".
func Domain(entityID string) string {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return domain
}

// ValidEntityID reports whether an entity ID has the domain.object_id
// shape with both parts non-empty.
func ValidEntityID(entityID string) bool {
	domain, object, found := strings.Cut(entityID, ".")
	return found && domain != "" && object != ""
}
