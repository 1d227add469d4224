package trigger

import (
	"context"
	"fmt"
	"reflect"

	"github.com/amberhub/amber-core/internal/bus"
)

// EventPlatform fires on bus events.
//
// Config:
//
//	platform: event
//	event_type: automation_reloaded     # required
//	event_data:                         # optional subset match
//	  source: api
type EventPlatform struct{}

// Validate implements Platform.
func (EventPlatform) Validate(cfg Config) error {
	if _, err := reqString(cfg, "event_type"); err != nil {
		return err
	}
	if v, ok := cfg["event_data"]; ok {
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("%w: \"event_data\" must be a mapping", ErrInvalidConfig)
		}
	}
	return nil
}

// Attach implements Platform.
func (p EventPlatform) Attach(_ context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}

	eventType := optString(cfg, "event_type")
	wantData, _ := cfg["event_data"].(map[string]any)

	detach := env.Bus.Listen(eventType, func(ctx context.Context, event bus.Event) {
		if !matchesSubset(event.Data, wantData) {
			return
		}
		fire(ctx, map[string]any{
			"platform":    "event",
			"description": fmt.Sprintf("event %q", eventType),
			"event_type":  event.Type,
			"event_data":  event.Data,
		})
	})

	return DetachFunc(detach), nil
}

// matchesSubset reports whether every key in want equals the
// corresponding key in got. A nil or empty want matches anything.
// DeepEqual rather than ==: event data values can be maps, which
// panic on plain interface comparison.
func matchesSubset(got, want map[string]any) bool {
	for k, wv := range want {
		gv, ok := got[k]
		if !ok || !reflect.DeepEqual(gv, wv) {
			return false
		}
	}
	return true
}
