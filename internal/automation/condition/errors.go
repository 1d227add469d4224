package condition

import "errors"

var (
	// ErrInvalidConfig is returned when a condition config is malformed.
	ErrInvalidConfig = errors.New("condition: invalid config")

	// ErrUnknownCondition is returned for an unregistered condition type.
	ErrUnknownCondition = errors.New("condition: unknown condition type")
)
