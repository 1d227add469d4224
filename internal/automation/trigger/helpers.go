package trigger

import (
	"fmt"
	"time"
)

// optString returns cfg[key] as a string, or "" when absent.
func optString(cfg Config, key string) string {
	s, _ := cfg[key].(string)
	return s
}

// reqString returns cfg[key] as a non-empty string or an error.
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

// stringList returns cfg[key] as a slice of strings.
// Accepts a single string, []string, or []any of strings. Absent keys
// yield nil without error.
func stringList(cfg Config, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrInvalidConfig, key)
		}
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

// optDuration parses cfg[key] as a Go duration string ("5s", "2m30s").
// Absent keys yield zero without error.
func optDuration(cfg Config, key string) (time.Duration, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a duration string", ErrInvalidConfig, key)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %q must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

// optFloat returns cfg[key] as a float64. Accepts any numeric type
// YAML or JSON decoding may produce. The second return reports presence.
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

// toFloat converts JSON/YAML numeric types to float64.
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

// containsString reports whether list contains s. An empty list matches
// nothing; use it only after checking the list is non-nil when "absent
// means match-all" semantics are wanted.
func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
