package trigger

import "errors"

var (
	// ErrInvalidConfig is returned when a trigger config is malformed.
	ErrInvalidConfig = errors.New("trigger: invalid config")

	// ErrUnknownPlatform is returned for an unregistered platform name.
	ErrUnknownPlatform = errors.New("trigger: unknown platform")
)
