package script

import (
	"fmt"
	"time"
)

// optString returns the string value for key, or "" when absent or not
// a string.
func optString(cfg ActionConfig, key string) string {
	s, _ := cfg[key].(string)
	return s
}

// reqString returns the string value for key or an error when it is
// missing or empty.
func reqString(cfg ActionConfig, key string) (string, error) {
	s := optString(cfg, key)
	if s == "" {
		return "", fmt.Errorf("%w: %q is required", ErrInvalidAction, key)
	}
	return s, nil
}

// reqDuration parses the value for key as a Go duration string and
// requires it to be positive.
func reqDuration(cfg ActionConfig, key string) (time.Duration, error) {
	raw := optString(cfg, key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %q is required", ErrInvalidAction, key)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid duration", ErrInvalidAction, raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidAction, key)
	}
	return d, nil
}

// optDuration parses an optional duration value for key. A zero
// duration is returned when the key is absent.
func optDuration(cfg ActionConfig, key string) (time.Duration, error) {
	raw := optString(cfg, key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q is not a valid duration", ErrInvalidAction, raw)
	}
	return d, nil
}

// optMap returns the map value for key, handling both map[string]any
// and the map[any]any form produced by some YAML decoders.
func optMap(cfg ActionConfig, key string) map[string]any {
	switch v := cfg[key].(type) {
	case map[string]any:
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	default:
		return nil
	}
}

// stringList coerces a config value into a list of strings. Accepts a
// single string, []string, or []any of strings.
func stringList(cfg ActionConfig, key string) []string {
	switch v := cfg[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
