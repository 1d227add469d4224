package condition

import (
	"context"
	"fmt"
	"time"

	"github.com/amberhub/amber-core/internal/state"
)

// StateCondition passes when an entity's state (or attribute) equals
// one of the wanted values.
//
// Config:
//
//	condition: state
//	entity_id: cover.garage      # required
//	state: closed                # required, string or list
//	attribute: position          # optional
//	for: 5m                      # optional, state must have held this long
type StateCondition struct{}

// Validate implements Builder.
func (StateCondition) Validate(cfg Config) error {
	entityID, err := reqString(cfg, "entity_id")
	if err != nil {
		return err
	}
	if !state.ValidEntityID(entityID) {
		return fmt.Errorf("%w: invalid entity_id %q", ErrInvalidConfig, entityID)
	}
	wanted, err := stringList(cfg, "state")
	if err != nil {
		return err
	}
	if len(wanted) == 0 {
		return fmt.Errorf("%w: missing \"state\"", ErrInvalidConfig)
	}
	if v, ok := cfg["for"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return fmt.Errorf("%w: \"for\" must be a duration string", ErrInvalidConfig)
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%w: \"for\": %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Build implements Builder.
func (c StateCondition) Build(env Environment, cfg Config) (Checker, error) {
	if err := c.Validate(cfg); err != nil {
		return nil, err
	}

	entityID := optString(cfg, "entity_id")
	wanted, _ := stringList(cfg, "state")
	attribute := optString(cfg, "attribute")
	var heldFor time.Duration
	if s, ok := cfg["for"].(string); ok {
		heldFor, _ = time.ParseDuration(s)
	}

	return func(_ context.Context) bool {
		s, err := env.States.Get(entityID)
		if err != nil {
			return false
		}

		value := s.State
		if attribute != "" {
			v, ok := s.Attributes[attribute]
			if !ok {
				return false
			}
			value = fmt.Sprintf("%v", v)
		}

		matched := false
		for _, w := range wanted {
			if w == value {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}

		if heldFor > 0 && time.Since(s.LastChanged) < heldFor {
			return false
		}
		return true
	}, nil
}

// NumericStateCondition passes when an entity's numeric value is inside
// the configured range.
//
// Config:
//
//	condition: numeric_state
//	entity_id: sensor.office_temperature
//	above: 18            # at least one of above/below
//	below: 26
//	attribute: battery_level   # optional
type NumericStateCondition struct{}

// Validate implements Builder.
func (NumericStateCondition) Validate(cfg Config) error {
	entityID, err := reqString(cfg, "entity_id")
	if err != nil {
		return err
	}
	if !state.ValidEntityID(entityID) {
		return fmt.Errorf("%w: invalid entity_id %q", ErrInvalidConfig, entityID)
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

// Build implements Builder.
func (c NumericStateCondition) Build(env Environment, cfg Config) (Checker, error) {
	if err := c.Validate(cfg); err != nil {
		return nil, err
	}

	entityID := optString(cfg, "entity_id")
	attribute := optString(cfg, "attribute")
	above, hasAbove, _ := optFloat(cfg, "above")
	below, hasBelow, _ := optFloat(cfg, "below")

	return func(_ context.Context) bool {
		value, ok := entityNumeric(env.States, entityID, attribute)
		if !ok {
			return false
		}
		if hasAbove && value <= above {
			return false
		}
		if hasBelow && value >= below {
			return false
		}
		return true
	}, nil
}

// TimeCondition passes inside a daily wall-clock window, optionally
// restricted to weekdays.
//
// Config:
//
//	condition: time
//	after: "22:00:00"            # optional
//	before: "06:30:00"           # optional
//	weekday: [sat, sun]          # optional
//
// A window with after > before spans midnight.
type TimeCondition struct{}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	"sun": time.Sunday,
}

// Validate implements Builder.
func (TimeCondition) Validate(cfg Config) error {
	_, hasAfter := cfg["after"]
	_, hasBefore := cfg["before"]
	_, hasWeekday := cfg["weekday"]
	if !hasAfter && !hasBefore && !hasWeekday {
		return fmt.Errorf("%w: at least one of \"after\", \"before\", \"weekday\" is required", ErrInvalidConfig)
	}

	for _, key := range []string{"after", "before"} {
		if v, ok := cfg[key]; ok {
			s, isStr := v.(string)
			if !isStr {
				return fmt.Errorf("%w: %q must be HH:MM:SS", ErrInvalidConfig, key)
			}
			if _, err := time.Parse("15:04:05", s); err != nil {
				return fmt.Errorf("%w: %q must be HH:MM:SS: %v", ErrInvalidConfig, key, err)
			}
		}
	}

	weekdays, err := stringList(cfg, "weekday")
	if err != nil {
		return err
	}
	for _, w := range weekdays {
		if _, ok := weekdayNames[w]; !ok {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, w)
		}
	}
	return nil
}

// Build implements Builder.
func (c TimeCondition) Build(_ Environment, cfg Config) (Checker, error) {
	if err := c.Validate(cfg); err != nil {
		return nil, err
	}

	parseClock := func(key string) (time.Time, bool) {
		s, ok := cfg[key].(string)
		if !ok {
			return time.Time{}, false
		}
		t, _ := time.Parse("15:04:05", s)
		return t, true
	}

	after, hasAfter := parseClock("after")
	before, hasBefore := parseClock("before")
	weekdays, _ := stringList(cfg, "weekday")

	allowedDays := make(map[time.Weekday]bool, len(weekdays))
	for _, w := range weekdays {
		allowedDays[weekdayNames[w]] = true
	}

	return func(_ context.Context) bool {
		now := time.Now()

		if len(allowedDays) > 0 && !allowedDays[now.Weekday()] {
			return false
		}

		secOfDay := func(t time.Time) int {
			return t.Hour()*3600 + t.Minute()*60 + t.Second()
		}
		nowSec := secOfDay(now)

		switch {
		case hasAfter && hasBefore:
			afterSec, beforeSec := secOfDay(after), secOfDay(before)
			if afterSec <= beforeSec {
				return nowSec >= afterSec && nowSec < beforeSec
			}
			// Window spans midnight
			return nowSec >= afterSec || nowSec < beforeSec
		case hasAfter:
			return nowSec >= secOfDay(after)
		case hasBefore:
			return nowSec < secOfDay(before)
		default:
			return true
		}
	}, nil
}

// DeviceCondition delegates to the device automation registry.
//
// Config:
//
//	condition: device
//	device_id: 6f3a…        # required
//	domain: cover           # required, owning integration
//	type: is_open           # required, integration-specific
type DeviceCondition struct{}

// Validate implements Builder.
func (DeviceCondition) Validate(cfg Config) error {
	for _, key := range []string{"device_id", "domain", "type"} {
		if _, err := reqString(cfg, key); err != nil {
			return err
		}
	}
	return nil
}

// Build implements Builder.
func (c DeviceCondition) Build(env Environment, cfg Config) (Checker, error) {
	if err := c.Validate(cfg); err != nil {
		return nil, err
	}
	if env.Devices == nil {
		return nil, fmt.Errorf("%w: device automations are not available", ErrInvalidConfig)
	}
	if err := env.Devices.ValidateCondition(cfg); err != nil {
		return nil, err
	}

	check, err := env.Devices.BuildCondition(cfg)
	if err != nil {
		return nil, err
	}
	return Checker(check), nil
}

// Logic operators.
const (
	opAnd = "and"
	opOr  = "or"
	opNot = "not"
)

// LogicCondition combines nested conditions with and/or/not.
//
// Config:
//
//	condition: or
//	conditions:
//	  - condition: state
//	    entity_id: cover.garage
//	    state: open
//	  - condition: state
//	    entity_id: cover.garage
//	    state: opening
type LogicCondition struct {
	op       string
	registry *Registry
}

// Validate implements Builder.
func (c LogicCondition) Validate(cfg Config) error {
	nested, err := nestedConditions(cfg)
	if err != nil {
		return err
	}
	if len(nested) == 0 {
		return fmt.Errorf("%w: %q requires at least one nested condition", ErrInvalidConfig, c.op)
	}
	for _, n := range nested {
		if err := c.registry.Validate(n); err != nil {
			return err
		}
	}
	return nil
}

// Build implements Builder.
func (c LogicCondition) Build(env Environment, cfg Config) (Checker, error) {
	if err := c.Validate(cfg); err != nil {
		return nil, err
	}

	nested, _ := nestedConditions(cfg)
	checkers := make([]Checker, 0, len(nested))
	for _, n := range nested {
		check, err := c.registry.Build(env, n)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, check)
	}

	switch c.op {
	case opAnd:
		return func(ctx context.Context) bool {
			for _, check := range checkers {
				if !check(ctx) {
					return false
				}
			}
			return true
		}, nil
	case opOr:
		return func(ctx context.Context) bool {
			for _, check := range checkers {
				if check(ctx) {
					return true
				}
			}
			return false
		}, nil
	default: // opNot
		return func(ctx context.Context) bool {
			for _, check := range checkers {
				if check(ctx) {
					return false
				}
			}
			return true
		}, nil
	}
}

// nestedConditions extracts the "conditions" list as []Config.
func nestedConditions(cfg Config) ([]Config, error) {
	v, ok := cfg["conditions"]
	if !ok {
		return nil, nil
	}

	switch t := v.(type) {
	case []Config:
		return t, nil
	case []any:
		out := make([]Config, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: \"conditions\" must contain mappings", ErrInvalidConfig)
			}
			out = append(out, Config(m))
		}
		return out, nil
	case []map[string]any:
		out := make([]Config, 0, len(t))
		for _, m := range t {
			out = append(out, Config(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: \"conditions\" must be a list", ErrInvalidConfig)
	}
}
