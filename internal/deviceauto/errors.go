package deviceauto

import "errors"

var (
	// ErrInvalidConfig is returned when a device automation config is
	// malformed or rejected by the owning integration.
	ErrInvalidConfig = errors.New("deviceauto: invalid device automation config")

	// ErrUnknownDomain is returned when no provider is registered for a
	// config's domain.
	ErrUnknownDomain = errors.New("deviceauto: unknown domain")
)
