package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amberhub/amber-core/internal/bus"
	"github.com/amberhub/amber-core/internal/state"
)

// StatePlatform fires on entity state transitions.
//
// Config:
//
//	platform: state
//	entity_id: light.living_room        # required, string or list
//	from: "off"                         # optional, string or list
//	to: "on"                            # optional, string or list
//	not_from: [unknown, unavailable]    # optional, mutually exclusive with from
//	not_to: [unknown, unavailable]      # optional, mutually exclusive with to
//	attribute: brightness               # optional, watch an attribute instead
//	for: 30s                            # optional, sustain duration
//
// Without from/to the trigger fires on every change of the watched
// value. With "for", the new value must hold for the full duration;
// a further change cancels the pending fire.
type StatePlatform struct{}

// Validate implements Platform.
func (StatePlatform) Validate(cfg Config) error {
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

	if _, hasFrom := cfg["from"]; hasFrom {
		if _, hasNotFrom := cfg["not_from"]; hasNotFrom {
			return fmt.Errorf("%w: \"from\" and \"not_from\" are mutually exclusive", ErrInvalidConfig)
		}
	}
	if _, hasTo := cfg["to"]; hasTo {
		if _, hasNotTo := cfg["not_to"]; hasNotTo {
			return fmt.Errorf("%w: \"to\" and \"not_to\" are mutually exclusive", ErrInvalidConfig)
		}
	}

	for _, key := range []string{"from", "to", "not_from", "not_to"} {
		if _, err := stringList(cfg, key); err != nil {
			return err
		}
	}
	if _, err := optDuration(cfg, "for"); err != nil {
		return err
	}
	return nil
}

// Attach implements Platform.
func (p StatePlatform) Attach(ctx context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}

	entityIDs, _ := stringList(cfg, "entity_id")
	from, _ := stringList(cfg, "from")
	to, _ := stringList(cfg, "to")
	notFrom, _ := stringList(cfg, "not_from")
	notTo, _ := stringList(cfg, "not_to")
	attribute := optString(cfg, "attribute")
	holdFor, _ := optDuration(cfg, "for")

	watched := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		watched[id] = true
	}

	// pending tracks per-entity sustain timers so a further state
	// change cancels the unfired timer.
	var pendingMu sync.Mutex
	pending := make(map[string]*time.Timer)

	detach := env.Bus.Listen(bus.EventStateChanged, func(evCtx context.Context, event bus.Event) {
		entityID, _ := event.Data["entity_id"].(string)
		if !watched[entityID] {
			return
		}

		oldState, _ := event.Data["old_state"].(*state.EntityState)
		newState, _ := event.Data["new_state"].(*state.EntityState)

		oldValue := watchedValue(oldState, attribute)
		newValue := watchedValue(newState, attribute)
		if oldValue == newValue {
			return
		}

		if len(from) > 0 && !containsString(from, oldValue) {
			return
		}
		if len(notFrom) > 0 && containsString(notFrom, oldValue) {
			return
		}
		if len(to) > 0 && !containsString(to, newValue) {
			return
		}
		if len(notTo) > 0 && containsString(notTo, newValue) {
			return
		}

		vars := map[string]any{
			"platform":    "state",
			"description": fmt.Sprintf("state of %s", entityID),
			"entity_id":   entityID,
			"from_state":  oldValue,
			"to_state":    newValue,
		}

		if holdFor == 0 {
			fire(evCtx, vars)
			return
		}

		// Cancel any pending timer for this entity, then arm a new
		// one. On expiry, verify the value still holds before firing.
		pendingMu.Lock()
		if t := pending[entityID]; t != nil {
			t.Stop()
		}
		pending[entityID] = time.AfterFunc(holdFor, func() {
			pendingMu.Lock()
			delete(pending, entityID)
			pendingMu.Unlock()

			if ctx.Err() != nil {
				return
			}
			current, err := env.States.Get(entityID)
			if err != nil || watchedValue(current, attribute) != newValue {
				return
			}
			vars["for"] = holdFor.String()
			fire(ctx, vars)
		})
		pendingMu.Unlock()
	})

	return func() {
		detach()
		pendingMu.Lock()
		for id, t := range pending {
			t.Stop()
			delete(pending, id)
		}
		pendingMu.Unlock()
	}, nil
}

// watchedValue extracts the compared value from a state snapshot:
// the state itself, or a named attribute rendered as a string.
func watchedValue(s *state.EntityState, attribute string) string {
	if s == nil {
		return ""
	}
	if attribute == "" {
		return s.State
	}
	v, ok := s.Attributes[attribute]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
