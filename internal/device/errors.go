package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID
	// that is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a device fails validation
	// (missing ID, name, or integration).
	ErrInvalidDevice = errors.New("device: invalid device")
)
