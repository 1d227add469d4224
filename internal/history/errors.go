package history

import "errors"

var (
	// ErrDisabled indicates state history is disabled in configuration.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("history: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")
)
