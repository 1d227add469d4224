package condition

import (
	"fmt"
	"strconv"

	"github.com/amberhub/amber-core/internal/state"
)

func optString(cfg Config, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func reqString(cfg Config, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidConfig, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidConfig, key)
	}
	return s, nil
}

// stringList accepts a single string, []string, or []any of strings.
func stringList(cfg Config, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must contain only strings", ErrInvalidConfig, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a string or list of strings", ErrInvalidConfig, key)
	}
}

func optFloat(cfg Config, key string) (float64, bool, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, false, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false, fmt.Errorf("%w: %q must be a number", ErrInvalidConfig, key)
	}
	return f, true, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

// entityNumeric reads the current numeric value of an entity's state or
// a named attribute.
func entityNumeric(states *state.Machine, entityID, attribute string) (float64, bool) {
	s, err := states.Get(entityID)
	if err != nil {
		return 0, false
	}
	if attribute == "" {
		f, parseErr := strconv.ParseFloat(s.State, 64)
		if parseErr != nil {
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
