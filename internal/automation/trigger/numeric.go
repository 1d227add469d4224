package trigger

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/state"
)

// NumericStatePlatform fires when a numeric value crosses into a range.
//
// Config:
//
//	platform: numeric_state
//	entity_id: sensor.office_temperature   # required, string or list
//	above: 25                              # at least one of above/below
//	below: 30
//	attribute: battery_level               # optional
//
// The trigger fires on the crossing: the previous value must be
// outside the range and the new value inside it. Values that stay
// inside the range do not re-fire.
type NumericStatePlatform struct{}

// Validate implements Platform.
func (NumericStatePlatform) Validate(cfg Config) error {
	entityIDs, err := stringList(cfg, "entity_id")
	if err != nil {
		return err
	}
	if len(entityIDs) == 0 {
		return fmt.Errorf("%w: missing \"entity_id\"", ErrInvalidConfig)
	}
	for _, id := range entityIDs {
		if !state.ValidEntityID(id) {
			return fmt.Errorf("%w: invalid entity_id %q", ErrInvalidConfig, id)
		}
	}

	_, hasAbove, err := optFloat(cfg, "above")
	if err != nil {
		return err
	}
	_, hasBelow, err := optFloat(cfg, "below")
	if err != nil {
		return err
	}
	if !hasAbove && !hasBelow {
		return fmt.Errorf("%w: at least one of \"above\" or \"below\" is required", ErrInvalidConfig)
	}
	return nil
}

// Attach implements Platform.
func (p NumericStatePlatform) Attach(_ context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}

	entityIDs, _ := stringList(cfg, "entity_id")
	above, hasAbove, _ := optFloat(cfg, "above")
	below, hasBelow, _ := optFloat(cfg, "below")
	attribute := optString(cfg, "attribute")

	watched := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		watched[id] = true
	}

	inRange := func(v float64) bool {
		if hasAbove && v <= above {
			return false
		}
		if hasBelow && v >= below {
			return false
		}
		return true
	}

	// wasInRange remembers the previous match per entity so only
	// crossings fire. Entities start outside the range; an entity
	// already in range fires on its first observed update.
	var mu sync.Mutex
	wasInRange := make(map[string]bool)

	detach := env.Bus.Listen(bus.EventStateChanged, func(ctx context.Context, event bus.Event) {
		entityID, _ := event.Data["entity_id"].(string)
		if !watched[entityID] {
			return
		}

		newState, _ := event.Data["new_state"].(*state.EntityState)
		value, ok := numericValue(newState, attribute)
		if !ok {
			mu.Lock()
			delete(wasInRange, entityID)
			mu.Unlock()
			return
		}

		now := inRange(value)

		mu.Lock()
		was := wasInRange[entityID]
		wasInRange[entityID] = now
		mu.Unlock()

		if !now || was {
			return
		}

		fire(ctx, map[string]any{
			"platform":    "numeric_state",
			"description": fmt.Sprintf("numeric state of %s", entityID),
			"entity_id":   entityID,
			"value":       value,
		})
	})

	return DetachFunc(detach), nil
}

// numericValue extracts a float from a state snapshot's state value or
// a named attribute.
func numericValue(s *state.EntityState, attribute string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if attribute == "" {
		f, err := strconv.ParseFloat(s.State, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	v, ok := s.Attributes[attribute]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
